package fake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/transport"
)

func request(deviceID string, v float64) transport.Request {
	return transport.Request{
		CommandID: "cmd-1",
		DeviceID:  deviceID,
		Parameter: "setpoint",
		Value:     device.NumberValue(v),
	}
}

func TestAdapter_SucceedsByDefault(t *testing.T) {
	f := New()
	res, err := f.Write(context.Background(), request("hvac", 22.5))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res.Achieved == nil || *res.Achieved != 22.5 {
		t.Errorf("Achieved = %v, want 22.5", res.Achieved)
	}
	if f.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", f.CallCount())
	}
}

func TestAdapter_BooleanHasNoReadback(t *testing.T) {
	f := New()
	req := request("valve", 0)
	req.Value = device.BoolValue(true)
	res, err := f.Write(context.Background(), req)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if res.Achieved != nil {
		t.Errorf("Achieved = %v, want nil", *res.Achieved)
	}
}

func TestAdapter_FailNext(t *testing.T) {
	f := New()
	f.FailNext("hvac", 2)

	for i := range 2 {
		if _, err := f.Write(context.Background(), request("hvac", 20)); !errors.Is(err, ErrSimulated) {
			t.Fatalf("write %d error = %v, want ErrSimulated", i, err)
		}
	}
	if _, err := f.Write(context.Background(), request("hvac", 20)); err != nil {
		t.Errorf("third write error = %v, want nil", err)
	}
	if _, err := f.Write(context.Background(), request("other", 20)); err != nil {
		t.Errorf("other device error = %v, want nil", err)
	}
}

func TestAdapter_FailAlwaysAndRecover(t *testing.T) {
	f := New()
	custom := errors.New("bridge offline")
	f.FailAlways("hvac", custom)

	for range 3 {
		if _, err := f.Write(context.Background(), request("hvac", 20)); !errors.Is(err, custom) {
			t.Fatalf("error = %v, want %v", err, custom)
		}
	}

	f.Recover("hvac")
	if _, err := f.Write(context.Background(), request("hvac", 20)); err != nil {
		t.Errorf("after Recover error = %v", err)
	}

	f.FailAlways("hvac", nil)
	if _, err := f.Write(context.Background(), request("hvac", 20)); !errors.Is(err, ErrSimulated) {
		t.Errorf("nil err should default to ErrSimulated, got %v", err)
	}
}

func TestAdapter_LatencyTimesOut(t *testing.T) {
	f := New()
	f.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Write(ctx, request("hvac", 20))
	if !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestAdapter_CancelledContext(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Write(ctx, request("hvac", 20)); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if f.CallCount() != 0 {
		t.Errorf("CallCount() = %d, want 0", f.CallCount())
	}
}

func TestAdapter_HoldBlocksUntilRelease(t *testing.T) {
	f := New()
	release := f.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := f.Write(context.Background(), request("hvac", 20))
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("write completed while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write did not complete after release")
	}
}

func TestAdapter_MaxConcurrent(t *testing.T) {
	f := New()
	release := f.Hold()

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.Write(context.Background(), request("hvac", 20)) //nolint:errcheck // only concurrency is checked
		}()
	}

	deadline := time.Now().Add(time.Second)
	for f.CallCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	release()
	wg.Wait()

	if got := f.MaxConcurrent(); got != 3 {
		t.Errorf("MaxConcurrent() = %d, want 3", got)
	}
}
