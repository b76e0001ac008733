package control

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/actuator-core/internal/device"
)

func newTestValidator(t *testing.T) (*Validator, *device.Registry, *testClock) {
	t.Helper()
	registry := device.NewRegistry(nil)
	for _, d := range testDevices() {
		if _, err := registry.Register(context.Background(), d); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	clock := newTestClock()
	return NewValidator(registry, testEnvelope(), clock.Now), registry, clock
}

func tempCommand(v float64) Command {
	return Command{
		ID:        "cmd-1",
		DeviceID:  "hvac_zone_a",
		Parameter: "setpoint",
		Quantity:  QuantityTemperature,
		Value:     num(v),
		Priority:  PriorityNormal,
		Origin:    OriginRecommendation,
		CreatedAt: epoch,
	}
}

func TestValidator_Checks(t *testing.T) {
	v, _, _ := newTestValidator(t)

	tests := []struct {
		name       string
		cmd        func() Command
		wantErr    error
		wantReason string
	}{
		{
			name:    "in range",
			cmd:     func() Command { return tempCommand(22) },
			wantErr: nil,
		},
		{
			name:    "unknown device",
			cmd:     func() Command { c := tempCommand(22); c.DeviceID = "ghost"; return c },
			wantErr: ErrNotFound,
		},
		{
			name:    "unknown parameter",
			cmd:     func() Command { c := tempCommand(22); c.Parameter = "fan"; return c },
			wantErr: ErrNotFound,
		},
		{
			name:    "boolean to float parameter",
			cmd:     func() Command { c := tempCommand(0); c.Value = device.BoolValue(true); return c },
			wantErr: ErrValueKind,
		},
		{
			name: "fractional to integer parameter",
			cmd: func() Command {
				return Command{DeviceID: "irrigation_1", Parameter: "duration", Value: num(1.5), Origin: OriginOperator}
			},
			wantErr: ErrValueKind,
		},
		{
			name:       "above envelope max",
			cmd:        func() Command { return tempCommand(55) },
			wantErr:    ErrOutOfRange,
			wantReason: "outside safe range: 55 outside [10, 40]",
		},
		{
			name:       "below envelope min but inside device range",
			cmd:        func() Command { return tempCommand(7) },
			wantErr:    ErrOutOfRange,
			wantReason: "[10, 40]",
		},
		{
			name: "no quantity uses device range only",
			cmd: func() Command {
				return Command{DeviceID: "irrigation_1", Parameter: "duration", Value: num(3601), Origin: OriginOperator}
			},
			wantErr:    ErrOutOfRange,
			wantReason: "[0, 3600]",
		},
		{
			name: "boolean skips range",
			cmd: func() Command {
				return Command{DeviceID: "irrigation_1", Parameter: "valve", Value: device.BoolValue(true), Origin: OriginOperator}
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.cmd(), Snapshot{}, testStrategy(), nil)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantReason != "" && !strings.Contains(err.Error(), tt.wantReason) {
				t.Errorf("reason %q does not contain %q", err.Error(), tt.wantReason)
			}
		})
	}
}

func TestValidator_OutOfRangeAlwaysRejected(t *testing.T) {
	v, _, _ := newTestValidator(t)
	for _, val := range []float64{-100, 9.999, 40.0001, 45, 1e9, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := v.Validate(tempCommand(val), Snapshot{}, testStrategy(), nil)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Validate(%g) error = %v, want ErrOutOfRange", val, err)
		}
	}
	for _, val := range []float64{10, 25, 40} {
		if err := v.Validate(tempCommand(val), Snapshot{}, testStrategy(), nil); err != nil {
			t.Errorf("Validate(%g) error = %v, want nil", val, err)
		}
	}
}

func TestValidator_Availability(t *testing.T) {
	v, registry, _ := newTestValidator(t)
	ctx := context.Background()

	for _, status := range []device.HealthStatus{device.StatusError, device.StatusMaintenance} {
		if _, err := registry.SetStatus(ctx, "hvac_zone_a", status); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}

		tests := []struct {
			origin  Origin
			wantErr error
		}{
			{OriginRecommendation, ErrDeviceUnavailable},
			{OriginSchedule, ErrDeviceUnavailable},
			{OriginOperator, nil},
			{OriginEmergencyStop, nil},
		}
		for _, tt := range tests {
			cmd := tempCommand(22)
			cmd.Origin = tt.origin
			err := v.Validate(cmd, Snapshot{}, testStrategy(), nil)
			if !errors.Is(err, tt.wantErr) && !(tt.wantErr == nil && err == nil) {
				t.Errorf("%s/%s: error = %v, want %v", status, tt.origin, err, tt.wantErr)
			}
		}
	}

	if _, err := registry.SetStatus(ctx, "hvac_zone_a", device.StatusDegraded); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := v.Validate(tempCommand(22), Snapshot{}, testStrategy(), nil); err != nil {
		t.Errorf("degraded device rejected: %v", err)
	}
}

func TestValidator_RateOfChange(t *testing.T) {
	v, _, clock := newTestValidator(t)

	tests := []struct {
		name    string
		last    float64
		age     time.Duration
		target  float64
		window  time.Duration
		wantErr bool
	}{
		{"within limit over window", 20, 0, 24, time.Hour, false},
		{"exceeds limit over window", 20, 0, 26, time.Hour, true},
		{"older snapshot spreads the change", 20, 2 * time.Hour, 28, time.Hour, false},
		{"older snapshot still too fast", 20, 2 * time.Hour, 31, time.Hour, true},
		{"decrease counts too", 30, 0, 24, time.Hour, true},
		{"short window tightens", 20, 0, 22, 15 * time.Minute, true},
		{"no elapsed time skips", 20, 0, 30, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{
				Values:    map[Quantity]float64{QuantityTemperature: tt.last},
				Timestamp: clock.Now().Add(-tt.age),
			}
			strat := testStrategy()
			strat.ValidationWindow = tt.window

			err := v.Validate(tempCommand(tt.target), snap, strat, nil)
			if tt.wantErr && !errors.Is(err, ErrRateExceeded) {
				t.Fatalf("error = %v, want ErrRateExceeded", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("error = %v, want nil", err)
			}
			if tt.wantErr && !strings.Contains(err.Error(), "5.00/h") {
				t.Errorf("reason %q does not report the allowed rate", err.Error())
			}
		})
	}
}

func TestValidator_RateSkippedWithoutPriorValue(t *testing.T) {
	v, _, clock := newTestValidator(t)
	snap := Snapshot{
		Values:    map[Quantity]float64{QuantityHumidity: 50},
		Timestamp: clock.Now(),
	}
	if err := v.Validate(tempCommand(39), snap, testStrategy(), nil); err != nil {
		t.Errorf("error = %v, want nil when the quantity has no prior value", err)
	}
}

func TestValidator_Conflict(t *testing.T) {
	v, _, _ := newTestValidator(t)
	pending := func(key string) bool { return key == "hvac_zone_a/setpoint" }

	err := v.Validate(tempCommand(22), Snapshot{}, testStrategy(), pending)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}

	other := tempCommand(50)
	other.Parameter = "humidity_setpoint"
	other.Quantity = QuantityHumidity
	if err := v.Validate(other, Snapshot{}, testStrategy(), pending); err != nil {
		t.Errorf("different parameter error = %v, want nil", err)
	}
}

func TestValidator_SafetyOverridesDisabled(t *testing.T) {
	v, _, _ := newTestValidator(t)
	strat := testStrategy()
	strat.SafetyOverrides = false

	cmd := tempCommand(500)
	cmd.DeviceID = "ghost"
	if err := v.Validate(cmd, Snapshot{}, strat, func(string) bool { return true }); err != nil {
		t.Errorf("error = %v, want nil when safety checks are off", err)
	}
}
