package control

import (
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/actuator-core/internal/device"
)

// DeviceLookup is the read side of the device registry.
type DeviceLookup interface {
	Lookup(id string) (*device.Device, error)
}

// Validator enforces the safety envelope on candidate commands.
type Validator struct {
	devices  DeviceLookup
	envelope Envelope
	now      func() time.Time
}

// NewValidator creates a validator. now supplies the current time for rate
// checks.
func NewValidator(devices DeviceLookup, envelope Envelope, now func() time.Time) *Validator {
	return &Validator{devices: devices, envelope: envelope, now: now}
}

// Envelope returns the validator's envelope.
func (v *Validator) Envelope() Envelope {
	return v.envelope
}

// Validate checks cmd against the device definition, the envelope and the
// last known state. pending reports whether a command for a key is already
// queued or executing; it may be nil.
//
// Checks run in order and stop at the first failure: existence, value kind,
// availability, absolute range, rate of change, conflict. When the strategy
// disables safety overrides every command passes.
func (v *Validator) Validate(cmd Command, snap Snapshot, strat Strategy, pending func(key string) bool) error {
	if !strat.SafetyOverrides {
		return nil
	}

	dev, err := v.devices.Lookup(cmd.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: device %q", ErrNotFound, cmd.DeviceID)
	}
	param, ok := dev.Parameter(cmd.Parameter)
	if !ok {
		return fmt.Errorf("%w: device %q has no parameter %q", ErrNotFound, cmd.DeviceID, cmd.Parameter)
	}
	if !cmd.Value.Fits(param) {
		return fmt.Errorf("%w: %s.%s is %s, got %s", ErrValueKind, cmd.DeviceID, cmd.Parameter, param.Kind, cmd.Value)
	}
	if !dev.Available() && !cmd.Origin.overridesAvailability() {
		return fmt.Errorf("%w: %s is %s", ErrDeviceUnavailable, cmd.DeviceID, dev.Status)
	}

	if !cmd.Value.IsBool {
		if err := v.checkRange(cmd, param); err != nil {
			return err
		}
		if err := v.checkRate(cmd, snap, strat.ValidationWindow); err != nil {
			return err
		}
	}

	if pending != nil && pending(cmd.Key()) {
		return fmt.Errorf("%w: %s", ErrConflict, cmd.Key())
	}
	return nil
}

func (v *Validator) checkRange(cmd Command, param device.Parameter) error {
	lo, hi, ok := v.envelope.Effective(cmd.Quantity, param.Min, param.Max)
	if !ok {
		return fmt.Errorf("%w: %s range [%g, %g] does not overlap the %s envelope",
			ErrOutOfRange, cmd.Key(), param.Min, param.Max, cmd.Quantity)
	}
	n := cmd.Value.Number
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: %s value %g is not a finite number", ErrOutOfRange, cmd.Key(), n)
	}
	if n < lo || n > hi {
		return fmt.Errorf("%w: %g outside [%g, %g]", ErrOutOfRange, n, lo, hi)
	}
	return nil
}

// checkRate compares the implied hourly rate of change against the limit.
// The change is assumed to take at least the validation window. A zero
// limit means the quantity has no rate limit.
func (v *Validator) checkRate(cmd Command, snap Snapshot, window time.Duration) error {
	limit, ok := v.envelope[cmd.Quantity]
	if !ok || limit.MaxRatePerHour == 0 {
		return nil
	}
	last, ok := snap.Value(cmd.Quantity)
	if !ok || snap.Timestamp.IsZero() {
		return nil
	}

	elapsed := v.now().Sub(snap.Timestamp)
	if elapsed < window {
		elapsed = window
	}
	if elapsed <= 0 {
		return nil
	}

	rate := math.Abs(cmd.Value.Number-last) / elapsed.Hours()
	if rate > limit.MaxRatePerHour {
		return fmt.Errorf("%w: %s change %.2f/h exceeds %.2f/h", ErrRateExceeded, cmd.Quantity, rate, limit.MaxRatePerHour)
	}
	return nil
}
