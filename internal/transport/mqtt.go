package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by adapters.
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

// Bus is the subset of the MQTT client the adapter needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// commandPayload is published to actuator/command/{device_id}.
type commandPayload struct {
	ID               string       `json:"id"`
	DeviceID         string       `json:"device_id"`
	Address          string       `json:"address,omitempty"`
	Parameter        string       `json:"parameter"`
	ParameterAddress int          `json:"parameter_address"`
	Value            device.Value `json:"value"`
	IssuedAt         time.Time    `json:"issued_at"`
}

// ackPayload is what a bridge publishes to actuator/ack/{device_id}.
type ackPayload struct {
	CommandID string   `json:"command_id"`
	Success   bool     `json:"success"`
	Value     *float64 `json:"value,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type waiter struct {
	deviceID string
	ch       chan ackPayload
}

// MQTTAdapter writes to devices behind an MQTT bridge.
//
// Each write publishes a command and blocks until the bridge acknowledges
// the same command id or ctx is done. Acks for unknown ids are dropped.
type MQTTAdapter struct {
	bus    Bus
	qos    byte
	topics mqtt.Topics
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	waiters map[string]waiter
}

// NewMQTTAdapter creates an adapter. Call Start before the first Write.
func NewMQTTAdapter(bus Bus, qos byte) *MQTTAdapter {
	return &MQTTAdapter{
		bus:     bus,
		qos:     qos,
		logger:  noopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
		waiters: make(map[string]waiter),
	}
}

// SetLogger sets the logger for the adapter.
func (a *MQTTAdapter) SetLogger(logger Logger) {
	a.logger = logger
}

// Start subscribes to device acknowledgements.
func (a *MQTTAdapter) Start() error {
	if err := a.bus.Subscribe(a.topics.AllDeviceAcks(), a.qos, a.handleAck); err != nil {
		return fmt.Errorf("subscribing to device acks: %w", err)
	}
	return nil
}

// Pending returns the number of writes awaiting acknowledgement.
func (a *MQTTAdapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.waiters)
}

// Write publishes the command and waits for its acknowledgement.
func (a *MQTTAdapter) Write(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(commandPayload{
		ID:               req.CommandID,
		DeviceID:         req.DeviceID,
		Address:          req.Address,
		Parameter:        req.Parameter,
		ParameterAddress: req.ParameterAddress,
		Value:            req.Value,
		IssuedAt:         a.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshalling command: %w", err)
	}

	ch := make(chan ackPayload, 1)
	a.mu.Lock()
	a.waiters[req.CommandID] = waiter{deviceID: req.DeviceID, ch: ch}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, req.CommandID)
		a.mu.Unlock()
	}()

	topic := a.topics.DeviceCommand(req.DeviceID)
	if err := a.bus.Publish(topic, payload, a.qos, false); err != nil {
		return Result{}, fmt.Errorf("publishing to %q: %w", topic, err)
	}

	a.logger.Debug("command published", "command_id", req.CommandID, "device_id", req.DeviceID, "topic", topic)

	select {
	case ack := <-ch:
		if !ack.Success {
			reason := ack.Error
			if reason == "" {
				reason = "no reason given"
			}
			return Result{}, fmt.Errorf("%w: %s", ErrRejected, reason)
		}
		return Result{Achieved: ack.Value}, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("%w: device %s did not acknowledge command %s", ErrTimeout, req.DeviceID, req.CommandID)
		}
		return Result{}, ctx.Err()
	}
}

func (a *MQTTAdapter) handleAck(topic string, payload []byte) error {
	var ack ackPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack on %q: %w", topic, err)
	}
	if ack.CommandID == "" {
		return fmt.Errorf("ack on %q has no command_id", topic)
	}

	a.mu.Lock()
	w, ok := a.waiters[ack.CommandID]
	a.mu.Unlock()

	if !ok {
		a.logger.Debug("ack for unknown command dropped", "command_id", ack.CommandID, "topic", topic)
		return nil
	}
	if deviceID := topic[strings.LastIndex(topic, "/")+1:]; deviceID != w.deviceID {
		a.logger.Warn("ack device mismatch", "command_id", ack.CommandID, "expected", w.deviceID, "got", deviceID)
		return nil
	}

	select {
	case w.ch <- ack:
	default:
		// Duplicate ack; the first one already resolved the write.
	}
	return nil
}
