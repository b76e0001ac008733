package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default sizing for a Trail.
const (
	DefaultCapacity  = 1000
	DefaultCompactTo = 500
)

// Outcome records the result of executing one command.
type Outcome struct {
	ID            string        `json:"id"`
	CommandID     string        `json:"command_id"`
	DeviceID      string        `json:"device_id"`
	Parameter     string        `json:"parameter"`
	Origin        string        `json:"origin,omitempty"`
	Priority      string        `json:"priority,omitempty"`
	Success       bool          `json:"success"`
	AchievedValue *float64      `json:"achieved_value,omitempty"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	DeviceStatus  string        `json:"device_status,omitempty"`
	Error         string        `json:"error,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Filter controls which outcomes List returns.
type Filter struct {
	DeviceID     string    // optional: only outcomes for this device
	FailuresOnly bool      // optional: only failed outcomes
	Since        time.Time // optional: only outcomes at or after this time
	Limit        int       // default 50, max the trail capacity
}

// ListResult contains the filtered outcomes, newest first.
type ListResult struct {
	Outcomes []Outcome `json:"outcomes"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
}

const defaultListLimit = 50

// Trail is an in-memory ring of outcomes.
//
// All methods are thread-safe.
type Trail struct {
	mu        sync.RWMutex
	entries   []Outcome // oldest first
	capacity  int
	compactTo int
}

// NewTrail creates a trail. Non-positive capacity falls back to
// DefaultCapacity; compactTo outside [0, capacity) falls back to half the
// capacity.
func NewTrail(capacity, compactTo int) *Trail {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if compactTo < 0 || compactTo >= capacity {
		compactTo = capacity / 2 //nolint:mnd // keep the newest half
	}
	return &Trail{
		entries:   make([]Outcome, 0, capacity),
		capacity:  capacity,
		compactTo: compactTo,
	}
}

// Append adds an outcome and returns the stored copy. An empty ID is
// generated; a zero Timestamp is set to now.
func (t *Trail) Append(o Outcome) Outcome {
	if o.ID == "" {
		o.ID = "out-" + uuid.NewString()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	if o.AchievedValue != nil {
		v := *o.AchievedValue
		o.AchievedValue = &v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, o)
	if len(t.entries) > t.capacity {
		kept := make([]Outcome, t.compactTo, t.capacity)
		copy(kept, t.entries[len(t.entries)-t.compactTo:])
		t.entries = kept
	}
	return o
}

// Len returns the number of retained outcomes.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Recent returns up to limit outcomes, newest first.
func (t *Trail) Recent(limit int) []Outcome {
	return t.List(Filter{Limit: limit}).Outcomes
}

// List returns outcomes matching the filter, newest first.
func (t *Trail) List(filter Filter) ListResult {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > t.capacity {
		filter.Limit = t.capacity
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	result := ListResult{Outcomes: []Outcome{}, Limit: filter.Limit}
	for i := len(t.entries) - 1; i >= 0; i-- {
		o := t.entries[i]
		if !filter.matches(o) {
			continue
		}
		result.Total++
		if len(result.Outcomes) < filter.Limit {
			result.Outcomes = append(result.Outcomes, o)
		}
	}
	return result
}

func (f Filter) matches(o Outcome) bool {
	if f.DeviceID != "" && o.DeviceID != f.DeviceID {
		return false
	}
	if f.FailuresOnly && o.Success {
		return false
	}
	if !f.Since.IsZero() && o.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// FailuresSince counts failed outcomes at or after since.
func (t *Trail) FailuresSince(since time.Time) int {
	failures, _ := t.countSince(since)
	return failures
}

// FailureRate returns failed/total for outcomes at or after since, or 0 when
// there are none.
func (t *Trail) FailureRate(since time.Time) float64 {
	failures, total := t.countSince(since)
	if total == 0 {
		return 0
	}
	return float64(failures) / float64(total)
}

func (t *Trail) countSince(since time.Time) (failures, total int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		o := t.entries[i]
		if o.Timestamp.Before(since) {
			// Entries are appended in time order; older ones follow.
			break
		}
		total++
		if !o.Success {
			failures++
		}
	}
	return failures, total
}
