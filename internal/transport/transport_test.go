package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/actuator-core/internal/device"
)

func testRequest() Request {
	return Request{
		CommandID: "cmd-1",
		DeviceID:  "hvac_zone_a",
		Transport: device.TransportMQTT,
		Parameter: "setpoint",
		Value:     device.NumberValue(21),
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		valid  bool
	}{
		{"complete", func(*Request) {}, true},
		{"no command id", func(r *Request) { r.CommandID = "" }, false},
		{"no device id", func(r *Request) { r.DeviceID = "" }, false},
		{"no parameter", func(r *Request) { r.Parameter = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	var got []string
	r.Handle(device.TransportMQTT, AdapterFunc(func(_ context.Context, req Request) (Result, error) {
		got = append(got, "mqtt:"+req.DeviceID)
		return Result{}, nil
	}))
	r.Handle(device.TransportSimulated, AdapterFunc(func(_ context.Context, req Request) (Result, error) {
		got = append(got, "sim:"+req.DeviceID)
		return Result{}, nil
	}))

	req := testRequest()
	if _, err := r.Write(context.Background(), req); err != nil {
		t.Fatalf("mqtt Write() error = %v", err)
	}
	req.Transport = device.TransportSimulated
	if _, err := r.Write(context.Background(), req); err != nil {
		t.Fatalf("simulated Write() error = %v", err)
	}
	req.Transport = device.TransportModbus
	if _, err := r.Write(context.Background(), req); !errors.Is(err, ErrUnsupported) {
		t.Errorf("modbus Write() error = %v, want ErrUnsupported", err)
	}

	if len(got) != 2 || got[0] != "mqtt:hvac_zone_a" || got[1] != "sim:hvac_zone_a" {
		t.Errorf("routed = %v", got)
	}
	kinds := r.Kinds()
	if len(kinds) != 2 || kinds[0] != device.TransportMQTT || kinds[1] != device.TransportSimulated {
		t.Errorf("Kinds() = %v", kinds)
	}
}

func TestBreakerAdapter_OpensAfterThreshold(t *testing.T) {
	calls := 0
	failing := AdapterFunc(func(context.Context, Request) (Result, error) {
		calls++
		return Result{}, ErrRejected
	})
	b := NewBreakerAdapter(failing, BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute})

	for i := range 2 {
		if _, err := b.Write(context.Background(), testRequest()); !errors.Is(err, ErrRejected) {
			t.Fatalf("write %d error = %v, want ErrRejected", i, err)
		}
	}
	if b.State("hvac_zone_a") != gobreaker.StateOpen {
		t.Fatalf("State = %v, want open", b.State("hvac_zone_a"))
	}

	_, err := b.Write(context.Background(), testRequest())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("underlying calls = %d, want 2", calls)
	}
}

func TestBreakerAdapter_PerDevice(t *testing.T) {
	next := AdapterFunc(func(_ context.Context, req Request) (Result, error) {
		if req.DeviceID == "bad" {
			return Result{}, ErrRejected
		}
		v := 21.0
		return Result{Achieved: &v}, nil
	})
	b := NewBreakerAdapter(next, BreakerSettings{FailureThreshold: 1, OpenTimeout: time.Minute})

	bad := testRequest()
	bad.DeviceID = "bad"
	_, _ = b.Write(context.Background(), bad) //nolint:errcheck // tripping the breaker

	res, err := b.Write(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("healthy device error = %v", err)
	}
	if res.Achieved == nil || *res.Achieved != 21 {
		t.Errorf("Achieved = %v, want 21", res.Achieved)
	}
	if b.State("bad") != gobreaker.StateOpen {
		t.Errorf("bad State = %v, want open", b.State("bad"))
	}
	if b.State("unknown") != gobreaker.StateClosed {
		t.Errorf("unknown State = %v, want closed", b.State("unknown"))
	}
}

func TestNewBreakerAdapter_Defaults(t *testing.T) {
	b := NewBreakerAdapter(AdapterFunc(func(context.Context, Request) (Result, error) {
		return Result{}, nil
	}), BreakerSettings{})
	if b.settings.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", b.settings.FailureThreshold)
	}
	if b.settings.OpenTimeout != 30*time.Second {
		t.Errorf("OpenTimeout = %v, want 30s", b.settings.OpenTimeout)
	}
}
