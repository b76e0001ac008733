package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the authoritative in-memory set of devices.
//
// Reads take the read lock and return deep copies. Mutations take the write
// lock, update the cache and then write through to the Repository when one
// is configured. The cache stays authoritative if a write-through fails;
// the error is returned so callers can log it.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a registry. repo may be nil for a memory-only registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock overrides the time source used for CreatedAt/UpdatedAt.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Load replaces the cache with the repository contents.
// Called once at startup before any seed devices are registered.
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		r.cache[devices[i].ID] = devices[i].DeepCopy()
	}

	r.logger.Info("device cache loaded", "count", len(devices))
	return nil
}

// Register inserts a device or replaces the one with the same id.
//
// A replaced device keeps its CreatedAt. An empty Status defaults to online.
// Health counters are taken from the supplied device, so re-registering a
// device in error with status online clears the error.
func (r *Registry) Register(ctx context.Context, d Device) (*Device, error) {
	if d.Status == "" {
		d.Status = StatusOnline
	}
	if err := ValidateDevice(&d); err != nil {
		return nil, err
	}

	now := r.now()
	stored := d.DeepCopy()
	stored.UpdatedAt = now

	r.cacheMu.Lock()
	if existing, ok := r.cache[d.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	r.cache[d.ID] = stored
	out := stored.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device registered", "id", d.ID, "category", d.Category, "zone", d.Zone)

	if r.repo != nil {
		if err := r.repo.Upsert(ctx, out); err != nil {
			return out, fmt.Errorf("persisting device %s: %w", d.ID, err)
		}
	}
	return out, nil
}

// Remove deletes a device. Returns ErrDeviceNotFound if it is not registered.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.cacheMu.Lock()
	if _, ok := r.cache[id]; !ok {
		r.cacheMu.Unlock()
		return ErrDeviceNotFound
	}
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device removed", "id", id)

	if r.repo != nil {
		if err := r.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting device %s: %w", id, err)
		}
	}
	return nil
}

// Lookup returns a copy of the device or ErrDeviceNotFound.
func (r *Registry) Lookup(id string) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	d, ok := r.cache[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// List returns copies of all devices ordered by id.
func (r *Registry) List() []Device {
	r.cacheMu.RLock()
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// FindAvailable returns the online device of the category with the lowest id.
func (r *Registry) FindAvailable(category Category) (*Device, error) {
	return r.find(category, "")
}

// FindAvailableInZone prefers an online device of the category in zone and
// falls back to FindAvailable when the zone has none.
func (r *Registry) FindAvailableInZone(category Category, zone string) (*Device, error) {
	if zone != "" {
		if d, err := r.find(category, zone); err == nil {
			return d, nil
		}
	}
	return r.find(category, "")
}

func (r *Registry) find(category Category, zone string) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var best *Device
	for _, d := range r.cache {
		if d.Category != category || d.Status != StatusOnline {
			continue
		}
		if zone != "" && d.Zone != zone {
			continue
		}
		if best == nil || d.ID < best.ID {
			best = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: category %s", ErrNoAvailableDevice, category)
	}
	return best.DeepCopy(), nil
}

// RecordSuccess resets the failure counter, stamps LastResponse and restores
// an errored or degraded device to online. Maintenance is left untouched
// because it is set by an operator. Returns the resulting status.
func (r *Registry) RecordSuccess(ctx context.Context, id string, at time.Time) (HealthStatus, error) {
	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return "", ErrDeviceNotFound
	}
	updated := cached.DeepCopy()
	updated.ConsecutiveFailures = 0
	updated.LastResponse = &at
	if updated.Status == StatusError || updated.Status == StatusDegraded {
		r.logger.Info("device recovered", "id", id, "previous_status", updated.Status)
		updated.Status = StatusOnline
	}
	updated.UpdatedAt = r.now()
	r.cache[id] = updated
	status := updated.Status
	r.cacheMu.Unlock()

	return status, r.persistHealth(ctx, updated)
}

// RecordFailure increments the failure counter and marks the device
// StatusError when it reaches FailureThreshold. Returns the resulting
// status and counter.
func (r *Registry) RecordFailure(ctx context.Context, id string) (HealthStatus, int, error) {
	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return "", 0, ErrDeviceNotFound
	}
	updated := cached.DeepCopy()
	updated.ConsecutiveFailures++
	if updated.ConsecutiveFailures >= FailureThreshold && updated.Status != StatusError {
		r.logger.Warn("device marked error after consecutive failures",
			"id", id, "failures", updated.ConsecutiveFailures)
		updated.Status = StatusError
	}
	updated.UpdatedAt = r.now()
	r.cache[id] = updated
	status, failures := updated.Status, updated.ConsecutiveFailures
	r.cacheMu.Unlock()

	return status, failures, r.persistHealth(ctx, updated)
}

// SetStatus sets a device's status directly, e.g. to put it into maintenance.
// Setting online also clears the failure counter.
func (r *Registry) SetStatus(ctx context.Context, id string, status HealthStatus) (*Device, error) {
	if err := ValidateStatus(status); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return nil, ErrDeviceNotFound
	}
	updated := cached.DeepCopy()
	updated.Status = status
	if status == StatusOnline {
		updated.ConsecutiveFailures = 0
	}
	updated.UpdatedAt = r.now()
	r.cache[id] = updated
	out := updated.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device status set", "id", id, "status", status)
	return out, r.persistHealth(ctx, out)
}

func (r *Registry) persistHealth(ctx context.Context, d *Device) error {
	if r.repo == nil {
		return nil
	}
	if err := r.repo.UpdateHealth(ctx, d.ID, d.Status, d.ConsecutiveFailures, d.LastResponse); err != nil {
		return fmt.Errorf("persisting health for %s: %w", d.ID, err)
	}
	return nil
}

// Counts returns the number of online devices and the total.
func (r *Registry) Counts() (online, total int) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, d := range r.cache {
		if d.Status == StatusOnline {
			online++
		}
	}
	return online, len(r.cache)
}

// Stats summarises the registry for the management API.
type Stats struct {
	TotalDevices int                  `json:"total_devices"`
	ByCategory   map[Category]int     `json:"by_category"`
	ByStatus     map[HealthStatus]int `json:"by_status"`
	ByTransport  map[Transport]int    `json:"by_transport"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByCategory:   make(map[Category]int),
		ByStatus:     make(map[HealthStatus]int),
		ByTransport:  make(map[Transport]int),
	}
	for _, d := range r.cache {
		stats.ByCategory[d.Category]++
		stats.ByStatus[d.Status]++
		stats.ByTransport[d.Transport]++
	}
	return stats
}
