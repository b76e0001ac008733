// Package control turns recommendations and operator requests into
// validated, priority-ordered writes against physical equipment.
//
// # Flow
//
//	recommendation ─► Validator ─► approval gate ─► Queue ─► Engine ─► transport.Adapter
//	                                                   ▲                    │
//	                                          emergency stop          audit.Trail
//
// A Controller owns one Validator, one Queue and one Engine, built with an
// injected device registry, transport adapter, audit trail and clock. There
// is no package-level state; tests build as many controllers as they need.
//
// # Safety
//
// Every admitted command has a value inside both its device parameter's
// range and the envelope for its physical quantity, and its implied rate of
// change from the last known environment snapshot is within the envelope's
// hourly limit. At most one command per device parameter is queued or
// executing, and queued plus executing never exceeds the strategy's
// MaxSimultaneousChanges.
//
// # Dispatch
//
// Run ticks at the configured interval and executes at most one command per
// tick. Execution is single-flight across the process. Emergency stop
// discards the queue and refuses admission until ResumeOperations.
package control
