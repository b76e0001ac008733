package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the core.
const (
	MeasurementExecution = "actuator_execution"
	MeasurementQueue     = "actuator_queue"
)

// Execution is one execution outcome as written to InfluxDB.
type Execution struct {
	DeviceID     string
	Parameter    string
	Success      bool
	Value        *float64
	Elapsed      time.Duration
	DeviceStatus string
	Timestamp    time.Time
}

// WriteExecution records an execution outcome. Non-blocking.
func (c *Client) WriteExecution(e Execution) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newExecutionPoint(e))
	c.written.Add(1)
}

// WriteQueueDepth records queue occupancy at the given time. Non-blocking.
func (c *Client) WriteQueueDepth(queued, executing int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newQueuePoint(queued, executing, at))
	c.written.Add(1)
}

func newExecutionPoint(e Execution) *write.Point {
	fields := map[string]interface{}{
		"success":    e.Success,
		"elapsed_ms": float64(e.Elapsed) / float64(time.Millisecond),
	}
	if e.Value != nil {
		fields["value"] = *e.Value
	}
	return write.NewPoint(MeasurementExecution,
		map[string]string{
			"device_id":     e.DeviceID,
			"parameter":     e.Parameter,
			"device_status": e.DeviceStatus,
		},
		fields, e.Timestamp)
}

func newQueuePoint(queued, executing int, at time.Time) *write.Point {
	return write.NewPoint(MeasurementQueue, nil,
		map[string]interface{}{
			"queued":    queued,
			"executing": executing,
		}, at)
}
