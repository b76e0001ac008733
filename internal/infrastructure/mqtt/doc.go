// Package mqtt provides the MQTT connection used by the actuator core.
//
// MQTT serves two roles: it is the transport for device writes (the core
// publishes to actuator/command/{device_id} and device bridges answer on
// actuator/ack/{device_id}), and it is an intake path for recommendation
// batches and an outlet for core events.
//
//	decision process -> broker -> core -> broker -> device bridges
//
// The initial connection is retried with exponential backoff; once
// connected, paho's auto-reconnect takes over and tracked subscriptions are
// restored. A retained status message plus Last Will lets other services
// see whether the core is online.
//
// Tests that need a broker are behind the "integration" build tag:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...
package mqtt
