// Package fake provides a deterministic transport adapter for simulated
// devices and tests.
//
// By default every write succeeds and reads back the written value.
// Failures are scripted per device with FailNext and FailAlways; writes can
// be delayed with SetLatency or held open with Hold.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/actuator-core/internal/transport"
)

// ErrSimulated is the error returned by scripted failures.
var ErrSimulated = errors.New("simulated transport failure")

// Adapter implements transport.Adapter in memory.
type Adapter struct {
	mu         sync.Mutex
	calls      []transport.Request
	failNext   map[string]int
	failAlways map[string]error
	latency    time.Duration
	gate       chan struct{}
	active     int
	maxActive  int
}

// New creates a fake adapter where every write succeeds.
func New() *Adapter {
	return &Adapter{
		failNext:   make(map[string]int),
		failAlways: make(map[string]error),
	}
}

// FailNext makes the next n writes to deviceID fail.
func (f *Adapter) FailNext(deviceID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[deviceID] = n
}

// FailAlways makes every write to deviceID fail with err, or ErrSimulated
// when err is nil, until Recover is called.
func (f *Adapter) FailAlways(deviceID string, err error) {
	if err == nil {
		err = ErrSimulated
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAlways[deviceID] = err
}

// Recover clears all scripted failures for deviceID.
func (f *Adapter) Recover(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failNext, deviceID)
	delete(f.failAlways, deviceID)
}

// SetLatency delays every write by d. A write whose context ends first
// fails with transport.ErrTimeout.
func (f *Adapter) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

// Hold blocks all subsequent writes until the returned release func is
// called. Release is idempotent.
func (f *Adapter) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns a copy of every request received, in order.
func (f *Adapter) Calls() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of requests received.
func (f *Adapter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// MaxConcurrent returns the highest number of writes that were in progress
// at the same time.
func (f *Adapter) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// Write implements transport.Adapter.
func (f *Adapter) Write(ctx context.Context, req transport.Request) (transport.Result, error) {
	select {
	case <-ctx.Done():
		return transport.Result{}, ctx.Err()
	default:
	}

	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	latency, gate := f.latency, f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return transport.Result{}, timeoutError(ctx, req.DeviceID)
		}
	}
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return transport.Result{}, timeoutError(ctx, req.DeviceID)
		}
	}

	if err := f.scriptedFailure(req.DeviceID); err != nil {
		return transport.Result{}, err
	}

	if req.Value.IsBool {
		return transport.Result{}, nil
	}
	achieved := req.Value.Number
	return transport.Result{Achieved: &achieved}, nil
}

func (f *Adapter) scriptedFailure(deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failAlways[deviceID]; ok {
		return err
	}
	if n := f.failNext[deviceID]; n > 0 {
		f.failNext[deviceID] = n - 1
		return ErrSimulated
	}
	return nil
}

func timeoutError(ctx context.Context, deviceID string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: device %s", transport.ErrTimeout, deviceID)
	}
	return ctx.Err()
}
