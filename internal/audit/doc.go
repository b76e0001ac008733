// Package audit keeps the bounded, append-only trail of execution outcomes.
//
// Every command the execution engine finishes, successfully or not, produces
// one Outcome. The trail holds the most recent outcomes in memory; when it
// grows past its capacity it is compacted to the newest entries. There is no
// persistent store: long-term history belongs to the InfluxDB sink.
package audit
