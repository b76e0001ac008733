package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures the per-device circuit breakers.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens a breaker.
	FailureThreshold uint32

	// OpenTimeout is how long a breaker stays open before a trial write.
	OpenTimeout time.Duration
}

// BreakerAdapter wraps an Adapter with one circuit breaker per device.
//
// While a device's breaker is open, writes fail immediately with
// ErrCircuitOpen instead of waiting out the transport timeout. The failure
// still reaches the device's health accounting.
type BreakerAdapter struct {
	next     Adapter
	settings BreakerSettings
	logger   Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerAdapter wraps next.
func NewBreakerAdapter(next Adapter, settings BreakerSettings) *BreakerAdapter {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	return &BreakerAdapter{
		next:     next,
		settings: settings,
		logger:   noopLogger{},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// SetLogger sets the logger for the adapter.
func (b *BreakerAdapter) SetLogger(logger Logger) {
	b.logger = logger
}

// Write forwards req through the device's breaker.
func (b *BreakerAdapter) Write(ctx context.Context, req Request) (Result, error) {
	cb := b.breaker(req.DeviceID)

	out, err := cb.Execute(func() (any, error) {
		return b.next.Write(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{}, fmt.Errorf("%w: device %s", ErrCircuitOpen, req.DeviceID)
	}
	if err != nil {
		return Result{}, err
	}
	res, _ := out.(Result) //nolint:errcheck // Execute returns what next.Write returned
	return res, nil
}

// State returns the breaker state for a device; closed if none exists yet.
func (b *BreakerAdapter) State(deviceID string) gobreaker.State {
	b.mu.Lock()
	cb, ok := b.breakers[deviceID]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (b *BreakerAdapter) breaker(deviceID string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[deviceID]; ok {
		return cb
	}
	threshold := b.settings.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    deviceID,
		Timeout: b.settings.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("device breaker state changed", "device_id", name, "from", from.String(), "to", to.String())
		},
	})
	b.breakers[deviceID] = cb
	return cb
}
