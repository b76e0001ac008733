package events

import (
	"time"
)

// Event types published on the bus and streamed to WebSocket clients.
const (
	TypeCommandAccepted          = "command.accepted"
	TypeExecutionRecorded        = "execution.recorded"
	TypeEmergencyStopEngaged     = "emergency_stop.engaged"
	TypeEmergencyStopResumed     = "emergency_stop.resumed"
	TypeRecommendationsProcessed = "recommendations.processed"
)

// AllTypes returns every event type.
func AllTypes() []string {
	return []string{
		TypeCommandAccepted,
		TypeExecutionRecorded,
		TypeEmergencyStopEngaged,
		TypeEmergencyStopResumed,
		TypeRecommendationsProcessed,
	}
}

// Envelope is the JSON body of every published event.
type Envelope struct {
	Type      string    `json:"type"`
	Site      string    `json:"site,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Logger defines the logging interface used by this package.
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
