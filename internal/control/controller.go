package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/transport"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultDispatchInterval = time.Second
	DefaultTransportTimeout = 5 * time.Second
)

// recentWindow is the look-back for Status error counts.
const recentWindow = time.Hour

// Logger defines the logging interface used by the controller.
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

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Registry is the device registry as used by the controller.
// *device.Registry satisfies it.
type Registry interface {
	HealthRecorder
	Register(ctx context.Context, d device.Device) (*device.Device, error)
	Remove(ctx context.Context, id string) error
	List() []device.Device
	SetStatus(ctx context.Context, id string, status device.HealthStatus) (*device.Device, error)
	FindAvailableInZone(category device.Category, zone string) (*device.Device, error)
	Counts() (online, total int)
}

// Options configures a Controller.
type Options struct {
	Strategy         Strategy
	Envelope         Envelope
	ParameterMap     ParameterMap
	Priority         PriorityPolicy
	TransportTimeout time.Duration
	DispatchInterval time.Duration
}

// Deps are the controller's collaborators. Registry and Transport are
// required; the rest have defaults.
type Deps struct {
	Registry  Registry
	Transport transport.Adapter
	Trail     *audit.Trail
	Clock     Clock
	Logger    Logger
	Observer  Observer
}

// Status summarises the controller for operators.
type Status struct {
	Mode                 Mode    `json:"mode"`
	EmergencyStopEngaged bool    `json:"emergency_stop_engaged"`
	EmergencyStopReason  string  `json:"emergency_stop_reason,omitempty"`
	OnlineDeviceCount    int     `json:"online_device_count"`
	TotalDeviceCount     int     `json:"total_device_count"`
	PendingCount         int     `json:"pending_count"`
	QueuedCount          int     `json:"queued_count"`
	RecentErrorCount     int     `json:"recent_error_count"`
	RecentFailureRate    float64 `json:"recent_failure_rate"`
}

// Controller is the actuator control core.
//
// Intake methods (ProcessRecommendations, SubmitCommand) are safe to call
// from many goroutines while Run dispatches.
type Controller struct {
	registry  Registry
	validator *Validator
	queue     *Queue
	engine    *Engine
	trail     *audit.Trail
	pmap      ParameterMap
	policy    PriorityPolicy
	interval  time.Duration
	clock     Clock
	logger    Logger
	observer  Observer

	strategyMu sync.RWMutex
	strategy   Strategy

	snapshotMu sync.RWMutex
	snapshot   Snapshot

	estop emergencyStop
}

// New creates a controller.
//
// Parameters:
//   - opts: initial strategy, safety envelope, parameter map and timings
//   - deps: registry and transport (required), trail, clock, logger, observer
//
// Returns an error wrapping ErrInvalidStrategy, ErrInvalidEnvelope or
// ErrInvalidParameterMap when opts do not validate.
func New(opts Options, deps Deps) (*Controller, error) {
	if deps.Registry == nil {
		return nil, errors.New("control: registry is required")
	}
	if deps.Transport == nil {
		return nil, errors.New("control: transport is required")
	}
	if err := opts.Strategy.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Envelope.Validate(); err != nil {
		return nil, err
	}
	if err := opts.ParameterMap.Validate(); err != nil {
		return nil, err
	}

	if deps.Trail == nil {
		deps.Trail = audit.NewTrail(audit.DefaultCapacity, audit.DefaultCompactTo)
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if opts.DispatchInterval <= 0 {
		opts.DispatchInterval = DefaultDispatchInterval
	}
	if opts.TransportTimeout <= 0 {
		opts.TransportTimeout = DefaultTransportTimeout
	}

	c := &Controller{
		registry: deps.Registry,
		queue:    NewQueue(opts.Strategy.MaxSimultaneousChanges),
		trail:    deps.Trail,
		pmap:     opts.ParameterMap,
		policy:   opts.Priority,
		interval: opts.DispatchInterval,
		clock:    deps.Clock,
		logger:   deps.Logger,
		observer: deps.Observer,
		strategy: opts.Strategy.clone(),
	}
	c.validator = NewValidator(deps.Registry, opts.Envelope, deps.Clock.Now)
	c.engine = newEngine(c.queue, deps.Registry, deps.Transport, deps.Trail,
		opts.TransportTimeout, deps.Clock.Now, deps.Logger, deps.Observer)
	return c, nil
}

// ProcessRecommendations validates, approves and enqueues a batch.
//
// Each recommendation is handled independently; one rejection does not
// affect the others. A recommendation whose parameter is not in the
// parameter map, or for which no online device exists, is rejected with
// ErrNoDevice and no command is built. The batch's state becomes the last
// known snapshot for later operator commands.
func (c *Controller) ProcessRecommendations(ctx context.Context, batch Batch) BatchResult {
	snap := batch.State.clone()
	if !snap.Timestamp.IsZero() {
		c.snapshotMu.Lock()
		c.snapshot = snap
		c.snapshotMu.Unlock()
	}
	strat := c.Strategy()

	result := BatchResult{Accepted: []Command{}, Rejected: []Rejection{}}
	for _, rec := range batch.Recommendations {
		if err := ctx.Err(); err != nil {
			result.Rejected = append(result.Rejected, Rejection{Action: rec.Action, Reason: err.Error()})
			continue
		}

		cmd, err := c.buildRecommended(rec, batch.Health)
		if err != nil {
			c.observer.CommandRejected(OriginRecommendation, err)
			result.Rejected = append(result.Rejected, Rejection{Action: rec.Action, Reason: err.Error()})
			continue
		}
		if err := c.admit(cmd, snap, strat, rec.Action.Parameter); err != nil {
			rejected := cmd
			result.Rejected = append(result.Rejected, Rejection{Command: &rejected, Action: rec.Action, Reason: err.Error()})
			continue
		}
		result.Accepted = append(result.Accepted, cmd)
	}

	c.logger.Info("recommendation batch processed",
		"recommendations", len(batch.Recommendations),
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
	)
	c.reportDepth()
	return result
}

func (c *Controller) buildRecommended(rec Recommendation, health *HealthAnalysis) (Command, error) {
	target, ok := c.pmap.Resolve(rec.Action.Parameter)
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown parameter %q", ErrNoDevice, rec.Action.Parameter)
	}
	dev, ok := c.selectDevice(target, rec.Action.Zone)
	if !ok {
		return Command{}, fmt.Errorf("%w: no online %s device with %s", ErrNoDevice, target.Category, target.Parameter)
	}

	return Command{
		ID:         uuid.NewString(),
		DeviceID:   dev.ID,
		Parameter:  target.Parameter,
		Quantity:   target.Quantity,
		Value:      rec.Action.Value,
		Priority:   c.policy.Assign(rec.Action, health),
		Origin:     OriginRecommendation,
		Rationale:  rec.Rationale,
		Confidence: rec.Confidence,
		CreatedAt:  c.clock.Now(),
	}, nil
}

// selectDevice picks the online device for a target, preferring zone. The
// registry's choice is used when it exposes the parameter; otherwise the
// lowest-id online device in the category that does is chosen.
func (c *Controller) selectDevice(target Target, zone string) (*device.Device, bool) {
	if dev, err := c.registry.FindAvailableInZone(target.Category, zone); err == nil {
		if _, ok := dev.Parameter(target.Parameter); ok {
			return dev, true
		}
	} else {
		return nil, false
	}

	var fallback *device.Device
	for _, d := range c.registry.List() {
		if d.Category != target.Category || d.Status != device.StatusOnline {
			continue
		}
		if _, ok := d.Parameter(target.Parameter); !ok {
			continue
		}
		if zone == "" || d.Zone == zone {
			return &d, true
		}
		if fallback == nil {
			fallback = &d
		}
	}
	return fallback, fallback != nil
}

// SubmitCommand validates and enqueues an operator or scheduled command.
//
// The returned command is populated even when it is rejected, so callers
// can report what was refused.
func (c *Controller) SubmitCommand(_ context.Context, req CommandRequest) (Command, error) {
	cmd, err := c.buildRequested(req)
	if err != nil {
		c.observer.CommandRejected(req.Origin, err)
		return Command{}, err
	}
	if err := c.admit(cmd, c.lastSnapshot(), c.Strategy()); err != nil {
		return cmd, err
	}
	c.reportDepth()
	return cmd, nil
}

func (c *Controller) buildRequested(req CommandRequest) (Command, error) {
	if req.DeviceID == "" || req.Parameter == "" {
		return Command{}, fmt.Errorf("%w: device_id and parameter are required", ErrInvalidCommand)
	}
	if req.Origin == "" {
		req.Origin = OriginOperator
	}
	origin, err := ParseOrigin(string(req.Origin))
	if err != nil {
		return Command{}, err
	}
	if origin == OriginRecommendation {
		return Command{}, fmt.Errorf("%w: recommendations are submitted as batches", ErrInvalidCommand)
	}
	priority, err := ParsePriority(string(req.Priority))
	if err != nil {
		return Command{}, err
	}
	if origin == OriginEmergencyStop {
		priority = PriorityEmergency
	}

	var quantity Quantity
	if dev, err := c.registry.Lookup(req.DeviceID); err == nil {
		quantity = c.pmap.QuantityFor(dev.Category, req.Parameter)
	}

	return Command{
		ID:        uuid.NewString(),
		DeviceID:  req.DeviceID,
		Parameter: req.Parameter,
		Quantity:  quantity,
		Value:     req.Value,
		Priority:  priority,
		Origin:    origin,
		Rationale: req.Rationale,
		CreatedAt: c.clock.Now(),
		Deadline:  req.Deadline,
	}, nil
}

// admit runs the validator, the approval gate and queue admission.
func (c *Controller) admit(cmd Command, snap Snapshot, strat Strategy, names ...string) error {
	err := c.validator.Validate(cmd, snap, strat, c.queue.IsPending)
	if err == nil {
		err = approve(cmd, strat, names...)
	}
	if err == nil {
		err = c.queue.Admit(cmd)
	}
	if err != nil {
		c.logger.Debug("command rejected",
			"device_id", cmd.DeviceID,
			"parameter", cmd.Parameter,
			"origin", cmd.Origin,
			"reason", err,
		)
		c.observer.CommandRejected(cmd.Origin, err)
		return err
	}

	c.logger.Info("command accepted",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"parameter", cmd.Parameter,
		"value", cmd.Value.String(),
		"priority", cmd.Priority,
		"origin", cmd.Origin,
	)
	c.observer.CommandAccepted(cmd)
	return nil
}

func (c *Controller) lastSnapshot() Snapshot {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.snapshot.clone()
}

// UpdateSnapshot replaces the last known environment state.
func (c *Controller) UpdateSnapshot(s Snapshot) {
	s = s.clone()
	c.snapshotMu.Lock()
	defer c.snapshotMu.Unlock()
	c.snapshot = s
}

// LastSnapshot returns the last known environment state.
func (c *Controller) LastSnapshot() Snapshot {
	return c.lastSnapshot()
}

// RegisterDevice adds or replaces a device.
func (c *Controller) RegisterDevice(ctx context.Context, d device.Device) (*device.Device, error) {
	return c.registry.Register(ctx, d)
}

// RemoveDevice removes a device. Commands already queued for it fail at
// execution time without a transport call.
func (c *Controller) RemoveDevice(ctx context.Context, id string) error {
	return c.registry.Remove(ctx, id)
}

// SetDeviceStatus sets a device's health status, e.g. for maintenance.
func (c *Controller) SetDeviceStatus(ctx context.Context, id string, status device.HealthStatus) (*device.Device, error) {
	return c.registry.SetStatus(ctx, id, status)
}

// Device returns one device.
func (c *Controller) Device(id string) (*device.Device, error) {
	return c.registry.Lookup(id)
}

// Devices returns all devices ordered by id.
func (c *Controller) Devices() []device.Device {
	return c.registry.List()
}

// Strategy returns a copy of the current strategy.
func (c *Controller) Strategy() Strategy {
	c.strategyMu.RLock()
	defer c.strategyMu.RUnlock()
	return c.strategy.clone()
}

// UpdateStrategy applies a partial update. The strategy is unchanged when
// the result does not validate.
func (c *Controller) UpdateStrategy(u StrategyUpdate) (Strategy, error) {
	c.strategyMu.Lock()
	next, err := c.strategy.Apply(u)
	if err != nil {
		c.strategyMu.Unlock()
		return c.Strategy(), err
	}
	c.strategy = next
	c.queue.SetCapacity(next.MaxSimultaneousChanges)
	c.strategyMu.Unlock()

	c.logger.Info("control strategy updated",
		"mode", next.Mode,
		"confidence_threshold", next.ConfidenceThreshold,
		"safety_overrides", next.SafetyOverrides,
		"max_simultaneous_changes", next.MaxSimultaneousChanges,
	)
	return next.clone(), nil
}

// Status returns the current system status.
func (c *Controller) Status() Status {
	online, total := c.registry.Counts()
	queued, pending := c.queue.Counts()
	estop := c.estop.current()
	since := c.clock.Now().Add(-recentWindow)

	return Status{
		Mode:                 c.Strategy().Mode,
		EmergencyStopEngaged: estop.Engaged,
		EmergencyStopReason:  estop.Reason,
		OnlineDeviceCount:    online,
		TotalDeviceCount:     total,
		PendingCount:         pending,
		QueuedCount:          queued,
		RecentErrorCount:     c.trail.FailuresSince(since),
		RecentFailureRate:    c.trail.FailureRate(since),
	}
}

// History returns execution outcomes matching filter, newest first.
func (c *Controller) History(filter audit.Filter) audit.ListResult {
	return c.trail.List(filter)
}

// Queued returns the queued commands in dispatch order.
func (c *Controller) Queued() []Command {
	return c.queue.Snapshot()
}

// EmergencyStop returns the interlock state.
func (c *Controller) EmergencyStop() EmergencyState {
	return c.estop.current()
}

// EngageEmergencyStop discards the queue, clears the pending set and
// refuses admission until ResumeOperations. A command already executing is
// allowed to finish. Engaging while engaged returns the existing state.
func (c *Controller) EngageEmergencyStop(reason string) (EmergencyState, error) {
	if !c.Strategy().EmergencyStopEnabled {
		return c.estop.current(), ErrEmergencyStopDisabled
	}
	if reason == "" {
		reason = "unspecified"
	}

	state, changed := c.estop.engage(c.queue, reason, c.clock.Now())
	if !changed {
		return state, nil
	}
	c.logger.Warn("emergency stop engaged", "reason", reason, "discarded", state.Discarded)
	c.observer.EmergencyStopChanged(state)
	c.reportDepth()
	return state, nil
}

// ResumeOperations lifts the emergency stop. Discarded commands are not
// replayed.
func (c *Controller) ResumeOperations() EmergencyState {
	state, changed := c.estop.resume(c.queue)
	if changed {
		c.logger.Warn("emergency stop released")
		c.observer.EmergencyStopChanged(state)
	}
	return state
}

// Tick performs at most one execute-and-record cycle. ok is false when
// nothing ran: the queue is empty or halted, or the engine is busy.
func (c *Controller) Tick(ctx context.Context) (audit.Outcome, bool) {
	if c.queue.Halted() {
		return audit.Outcome{}, false
	}
	outcome, ok := c.engine.ExecuteNext(ctx)
	if ok {
		c.reportDepth()
	}
	return outcome, ok
}

// Run dispatches on a fixed tick until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("dispatcher started", "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

func (c *Controller) reportDepth() {
	queued, pending := c.queue.Counts()
	c.observer.QueueDepth(queued, pending)
}
