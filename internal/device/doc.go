// Package device provides the Device Registry for the actuator core.
//
// The registry is the catalogue of physical equipment the core may command:
// HVAC units, lighting arrays, irrigation valves, gas injectors, fans and
// dosing pumps. Each device exposes named parameters with a value kind and a
// safe range, and carries a health status that execution outcomes update.
//
// # Architecture
//
//	┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐
//	│     Registry     │───▶│    Repository    │    │    Validation    │
//	│  (registry.go)   │    │ (repository.go)  │    │ (validation.go)  │
//	│ • RWMutex cache  │    │ • SQLite devices │    │ • ids, kinds     │
//	│ • deep copies    │    │   table          │    │ • ranges         │
//	│ • health counter │    └──────────────────┘    └──────────────────┘
//	└──────────────────┘
//
// # Health
//
// RecordFailure increments the consecutive-failure counter; the third
// consecutive failure moves the device to StatusError. RecordSuccess resets
// the counter and restores StatusOnline. Devices in error or maintenance are
// skipped by FindAvailable.
//
// # Usage
//
//	reg := device.NewRegistry(device.NewSQLiteRepository(db.DB))
//	if err := reg.Load(ctx); err != nil { ... }
//	d, err := reg.FindAvailableInZone(device.CategoryClimate, "zone_a")
package device
