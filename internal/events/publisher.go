package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/infrastructure/mqtt"
)

// DefaultBufferSize is the number of events held while the bus is slow.
const DefaultBufferSize = 256

// Bus is the subset of the MQTT client used for publishing.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Publisher forwards controller events to actuator/core/event/{type}.
//
// Observer methods only enqueue; Run performs the publishes. Events that
// arrive while the buffer is full are dropped and counted.
type Publisher struct {
	bus     Bus
	qos     byte
	site    string
	topics  mqtt.Topics
	logger  Logger
	now     func() time.Time
	queue   chan Envelope
	dropped atomic.Uint64
}

// NewPublisher creates a publisher. bufferSize < 1 uses DefaultBufferSize.
func NewPublisher(bus Bus, qos byte, site string, bufferSize int) *Publisher {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Publisher{
		bus:    bus,
		qos:    qos,
		site:   site,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
		queue:  make(chan Envelope, bufferSize),
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetClock overrides the event timestamp source.
func (p *Publisher) SetClock(now func() time.Time) {
	p.now = now
}

// Dropped returns the number of events discarded on a full buffer.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued events until ctx is cancelled. Events still buffered
// at cancellation are discarded.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-p.queue:
			if err := p.publish(env); err != nil {
				p.logger.Warn("event publish failed", "type", env.Type, "error", err)
			}
		}
	}
}

func (p *Publisher) publish(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", env.Type, err)
	}
	return p.bus.Publish(p.topics.CoreEvent(env.Type), payload, p.qos, false)
}

func (p *Publisher) enqueue(eventType string, payload any) {
	env := Envelope{Type: eventType, Site: p.site, Timestamp: p.now(), Payload: payload}
	select {
	case p.queue <- env:
	default:
		p.dropped.Add(1)
		p.logger.Warn("dropping event", "type", eventType, "error", ErrBufferFull)
	}
}

func (p *Publisher) CommandAccepted(cmd control.Command) {
	p.enqueue(TypeCommandAccepted, cmd)
}

func (p *Publisher) CommandRejected(control.Origin, error) {}

func (p *Publisher) ExecutionRecorded(o audit.Outcome) {
	p.enqueue(TypeExecutionRecorded, o)
}

func (p *Publisher) EmergencyStopChanged(state control.EmergencyState) {
	if state.Engaged {
		p.enqueue(TypeEmergencyStopEngaged, state)
		return
	}
	p.enqueue(TypeEmergencyStopResumed, state)
}

func (p *Publisher) QueueDepth(int, int) {}

// PublishBatchResult enqueues the result of a bus-delivered batch.
func (p *Publisher) PublishBatchResult(result control.BatchResult) {
	p.enqueue(TypeRecommendationsProcessed, result)
}

var _ control.Observer = (*Publisher)(nil)
