package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/actuator-core/internal/device"
)

// Request is a single parameter write.
type Request struct {
	CommandID        string           `json:"command_id"`
	DeviceID         string           `json:"device_id"`
	Transport        device.Transport `json:"transport"`
	Address          string           `json:"address,omitempty"`
	Parameter        string           `json:"parameter"`
	ParameterAddress int              `json:"parameter_address"`
	Value            device.Value     `json:"value"`
}

// Validate checks the fields every adapter relies on.
func (r Request) Validate() error {
	if r.CommandID == "" {
		return fmt.Errorf("%w: command id is required", ErrInvalidRequest)
	}
	if r.DeviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidRequest)
	}
	if r.Parameter == "" {
		return fmt.Errorf("%w: parameter is required", ErrInvalidRequest)
	}
	return nil
}

// Result is what the device reported after applying a write.
type Result struct {
	// Achieved is the value read back from the device, if it reports one.
	Achieved *float64
}

// Adapter writes to devices of one transport kind.
//
// Write must return once ctx is done. A nil error means the device
// confirmed the write.
type Adapter interface {
	Write(ctx context.Context, req Request) (Result, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req Request) (Result, error)

// Write calls f.
func (f AdapterFunc) Write(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Router dispatches a request to the adapter registered for its transport.
//
// Routes may be added while the router is in use.
type Router struct {
	mu     sync.RWMutex
	routes map[device.Transport]Adapter
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[device.Transport]Adapter)}
}

// Handle registers the adapter for a transport kind, replacing any previous one.
func (r *Router) Handle(kind device.Transport, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[kind] = a
}

// Kinds returns the transport kinds that have an adapter.
func (r *Router) Kinds() []device.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]device.Transport, 0, len(r.routes))
	for _, k := range device.AllTransports() {
		if _, ok := r.routes[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Write routes req by req.Transport.
func (r *Router) Write(ctx context.Context, req Request) (Result, error) {
	r.mu.RLock()
	a, ok := r.routes[req.Transport]
	r.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupported, req.Transport)
	}
	return a.Write(ctx, req)
}
