// Package transport delivers validated writes to physical devices.
//
// The control core never speaks a device protocol. It hands a Request to an
// Adapter and waits, bounded by a context deadline, for the Result. Adapters
// exist per transport kind:
//
//   - MQTTAdapter publishes to actuator/command/{device_id} and waits for the
//     bridge's acknowledgement on actuator/ack/{device_id}.
//   - fake.Adapter serves simulated devices and tests; it can be scripted to
//     fail on demand.
//
// Router selects the adapter by the device's transport kind and
// BreakerAdapter fails fast for devices whose bridge keeps failing.
//
// A timeout is reported as an error wrapping ErrTimeout and is treated by
// the engine like any other communication failure.
package transport
