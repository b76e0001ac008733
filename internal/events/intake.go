package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/infrastructure/mqtt"
)

// Processor is the controller operation the intake feeds.
type Processor interface {
	ProcessRecommendations(ctx context.Context, batch control.Batch) control.BatchResult
}

// Subscriber is the subset of the MQTT client used for intake.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// ResultPublisher receives the outcome of every bus-delivered batch.
type ResultPublisher interface {
	PublishBatchResult(result control.BatchResult)
}

// Intake accepts recommendation batches published on
// actuator/core/recommendations by the decision process.
type Intake struct {
	processor Processor
	results   ResultPublisher
	qos       byte
	topics    mqtt.Topics
	logger    Logger
	ctx       context.Context
}

// NewIntake creates an intake. results may be nil.
func NewIntake(processor Processor, results ResultPublisher, qos byte) *Intake {
	return &Intake{
		processor: processor,
		results:   results,
		qos:       qos,
		logger:    noopLogger{},
		ctx:       context.Background(),
	}
}

// SetLogger sets the logger for the intake.
func (in *Intake) SetLogger(logger Logger) {
	in.logger = logger
}

// Start subscribes to the recommendations topic. Batches are processed with
// ctx, so cancelling it rejects anything that arrives afterwards.
func (in *Intake) Start(ctx context.Context, sub Subscriber) error {
	in.ctx = ctx
	topic := in.topics.Recommendations()
	if err := sub.Subscribe(topic, in.qos, in.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	in.logger.Info("recommendation intake subscribed", "topic", topic)
	return nil
}

func (in *Intake) handle(_ string, payload []byte) error {
	var batch control.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBatch, err)
	}
	if len(batch.Recommendations) == 0 {
		return fmt.Errorf("%w: no recommendations", ErrInvalidBatch)
	}

	result := in.processor.ProcessRecommendations(in.ctx, batch)
	in.logger.Info("recommendation batch processed",
		"received", len(batch.Recommendations),
		"accepted", len(result.Accepted),
		"rejected", len(result.Rejected),
	)
	if in.results != nil {
		in.results.PublishBatchResult(result)
	}
	return nil
}
