// Package events connects the controller to the message bus and the
// time-series store.
//
//	Publisher       control.Observer -> actuator/core/event/{type}
//	OutcomeSink     control.Observer -> InfluxDB points
//	Intake          actuator/core/recommendations -> ProcessRecommendations
//
// Observers never block the controller: the Publisher hands events to its
// own goroutine through a bounded buffer and drops them when it is full.
package events
