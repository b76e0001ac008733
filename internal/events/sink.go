package events

import (
	"time"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/infrastructure/influxdb"
)

// PointWriter is the subset of the InfluxDB client used by OutcomeSink.
type PointWriter interface {
	WriteExecution(e influxdb.Execution)
	WriteQueueDepth(queued, executing int, at time.Time)
}

// OutcomeSink writes execution outcomes and queue depth to InfluxDB.
// The InfluxDB write API batches in the background, so every call returns
// immediately.
type OutcomeSink struct {
	control.NopObserver

	writer PointWriter
	now    func() time.Time
}

// NewOutcomeSink creates a sink over writer.
func NewOutcomeSink(writer PointWriter, now func() time.Time) *OutcomeSink {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &OutcomeSink{writer: writer, now: now}
}

func (s *OutcomeSink) ExecutionRecorded(o audit.Outcome) {
	s.writer.WriteExecution(influxdb.Execution{
		DeviceID:     o.DeviceID,
		Parameter:    o.Parameter,
		Success:      o.Success,
		Value:        o.AchievedValue,
		Elapsed:      o.Elapsed,
		DeviceStatus: o.DeviceStatus,
		Timestamp:    o.Timestamp,
	})
}

// QueueDepth records queued commands and those currently executing.
func (s *OutcomeSink) QueueDepth(queued, pending int) {
	executing := max(pending-queued, 0)
	s.writer.WriteQueueDepth(queued, executing, s.now())
}

var _ control.Observer = (*OutcomeSink)(nil)
