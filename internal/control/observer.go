package control

import "github.com/nerrad567/actuator-core/internal/audit"

// Observer receives controller events. Implementations must not block;
// they are called on the intake and dispatcher goroutines.
type Observer interface {
	CommandAccepted(cmd Command)
	CommandRejected(origin Origin, err error)
	ExecutionRecorded(outcome audit.Outcome)
	EmergencyStopChanged(state EmergencyState)
	QueueDepth(queued, pending int)
}

// Observers fans events out to every observer in order.
type Observers []Observer

func (os Observers) CommandAccepted(cmd Command) {
	for _, o := range os {
		o.CommandAccepted(cmd)
	}
}

func (os Observers) CommandRejected(origin Origin, err error) {
	for _, o := range os {
		o.CommandRejected(origin, err)
	}
}

func (os Observers) ExecutionRecorded(outcome audit.Outcome) {
	for _, o := range os {
		o.ExecutionRecorded(outcome)
	}
}

func (os Observers) EmergencyStopChanged(state EmergencyState) {
	for _, o := range os {
		o.EmergencyStopChanged(state)
	}
}

func (os Observers) QueueDepth(queued, pending int) {
	for _, o := range os {
		o.QueueDepth(queued, pending)
	}
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) CommandAccepted(Command)             {}
func (NopObserver) CommandRejected(Origin, error)       {}
func (NopObserver) ExecutionRecorded(audit.Outcome)     {}
func (NopObserver) EmergencyStopChanged(EmergencyState) {}
func (NopObserver) QueueDepth(int, int)                 {}
