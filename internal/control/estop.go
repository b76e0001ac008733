package control

import (
	"sync"
	"time"
)

// EmergencyState describes the emergency-stop interlock.
type EmergencyState struct {
	Engaged   bool      `json:"engaged"`
	Reason    string    `json:"reason,omitempty"`
	EngagedAt time.Time `json:"engaged_at,omitzero"`

	// Discarded is the number of queued commands dropped on engagement.
	Discarded int `json:"discarded"`
}

// emergencyStop holds the interlock metadata. The refusal of admission
// itself lives in Queue so it is checked under the queue lock.
type emergencyStop struct {
	mu    sync.Mutex
	state EmergencyState
}

func (e *emergencyStop) engage(q *Queue, reason string, at time.Time) (EmergencyState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Engaged {
		return e.state, false
	}
	discarded := q.Halt()
	e.state = EmergencyState{
		Engaged:   true,
		Reason:    reason,
		EngagedAt: at,
		Discarded: len(discarded),
	}
	return e.state, true
}

func (e *emergencyStop) resume(q *Queue) (EmergencyState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Engaged {
		return e.state, false
	}
	q.Resume()
	e.state = EmergencyState{}
	return e.state, true
}

func (e *emergencyStop) current() EmergencyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
