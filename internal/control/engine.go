package control

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/transport"
)

// HealthRecorder is the part of the device registry the engine updates.
type HealthRecorder interface {
	DeviceLookup
	RecordSuccess(ctx context.Context, id string, at time.Time) (device.HealthStatus, error)
	RecordFailure(ctx context.Context, id string) (device.HealthStatus, int, error)
}

// Engine executes queued commands one at a time.
type Engine struct {
	queue     *Queue
	devices   HealthRecorder
	transport transport.Adapter
	trail     *audit.Trail
	timeout   time.Duration
	now       func() time.Time
	logger    Logger
	observer  Observer

	busy atomic.Bool
}

func newEngine(q *Queue, devices HealthRecorder, t transport.Adapter, trail *audit.Trail,
	timeout time.Duration, now func() time.Time, logger Logger, observer Observer,
) *Engine {
	return &Engine{
		queue:     q,
		devices:   devices,
		transport: t,
		trail:     trail,
		timeout:   timeout,
		now:       now,
		logger:    logger,
		observer:  observer,
	}
}

// Busy reports whether a command is executing.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// ExecuteNext pops the head of the queue, executes it and records the
// outcome. ok is false when another execution is in progress or the queue
// is empty or halted.
func (e *Engine) ExecuteNext(ctx context.Context) (outcome audit.Outcome, ok bool) {
	if !e.busy.CompareAndSwap(false, true) {
		return audit.Outcome{}, false
	}
	defer e.busy.Store(false)

	cmd, ok := e.queue.Next()
	if !ok {
		return audit.Outcome{}, false
	}
	defer e.queue.Done(cmd)

	outcome = e.trail.Append(e.execute(ctx, cmd))
	e.observer.ExecutionRecorded(outcome)
	return outcome, true
}

// execute runs one command to completion. Once a command is taken off the
// queue it is not cancelled: the caller's ctx only carries values, and the
// transport timeout bounds the write.
func (e *Engine) execute(ctx context.Context, cmd Command) audit.Outcome {
	ctx = context.WithoutCancel(ctx)
	started := e.now()
	out := audit.Outcome{
		CommandID: cmd.ID,
		DeviceID:  cmd.DeviceID,
		Parameter: cmd.Parameter,
		Origin:    string(cmd.Origin),
		Priority:  string(cmd.Priority),
		Timestamp: started,
	}

	dev, err := e.devices.Lookup(cmd.DeviceID)
	if err != nil {
		out.Error = fmt.Sprintf("device %s removed before execution", cmd.DeviceID)
		e.logger.Warn("command dropped", "command_id", cmd.ID, "device_id", cmd.DeviceID, "reason", out.Error)
		return out
	}
	out.DeviceStatus = string(dev.Status)

	if cmd.Expired(started) {
		out.Error = "deadline expired before execution"
		e.logger.Warn("command expired", "command_id", cmd.ID, "device_id", cmd.DeviceID, "deadline", cmd.Deadline)
		return out
	}
	param, ok := dev.Parameter(cmd.Parameter)
	if !ok {
		out.Error = fmt.Sprintf("%v: parameter %s removed before execution", ErrNotFound, cmd.Parameter)
		return out
	}

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	res, werr := e.transport.Write(tctx, transport.Request{
		CommandID:        cmd.ID,
		DeviceID:         dev.ID,
		Transport:        dev.Transport,
		Address:          dev.Address,
		Parameter:        cmd.Parameter,
		ParameterAddress: param.Address,
		Value:            cmd.Value,
	})
	cancel()

	finished := e.now()
	out.Elapsed = finished.Sub(started)
	out.Timestamp = finished

	if werr != nil {
		if errors.Is(werr, context.DeadlineExceeded) && !errors.Is(werr, transport.ErrTimeout) {
			werr = fmt.Errorf("%w after %s: %w", transport.ErrTimeout, e.timeout, werr)
		}
		out.Error = werr.Error()
		status, failures, herr := e.devices.RecordFailure(ctx, cmd.DeviceID)
		e.noteHealthError(cmd.DeviceID, herr)
		if status != "" {
			out.DeviceStatus = string(status)
		}
		e.logger.Warn("command execution failed",
			"command_id", cmd.ID,
			"device_id", cmd.DeviceID,
			"parameter", cmd.Parameter,
			"failures", failures,
			"device_status", out.DeviceStatus,
			"error", werr,
		)
		return out
	}

	out.Success = true
	if res.Achieved != nil {
		v := *res.Achieved
		out.AchievedValue = &v
	} else if !cmd.Value.IsBool {
		v := cmd.Value.Number
		out.AchievedValue = &v
	}
	status, herr := e.devices.RecordSuccess(ctx, cmd.DeviceID, finished)
	e.noteHealthError(cmd.DeviceID, herr)
	if status != "" {
		out.DeviceStatus = string(status)
	}
	e.logger.Info("command executed",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"parameter", cmd.Parameter,
		"value", cmd.Value.String(),
		"elapsed", out.Elapsed,
	)
	return out
}

func (e *Engine) noteHealthError(deviceID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, device.ErrDeviceNotFound):
		e.logger.Warn("device removed during execution", "device_id", deviceID)
	default:
		e.logger.Error("persisting device health", "device_id", deviceID, "error", err)
	}
}
