// Package influxdb writes execution telemetry to InfluxDB v2.
//
// Each recorded execution outcome becomes one point in the
// "actuator_execution" measurement (tags device_id, parameter,
// device_status; fields success, elapsed_ms and value when known). Queue
// occupancy is sampled into "actuator_queue". InfluxDB is optional; when
// disabled the core runs with the in-memory audit trail only.
package influxdb
