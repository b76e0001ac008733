package control

import (
	"time"

	"github.com/nerrad567/actuator-core/internal/device"
)

// Action is what a recommendation asks for.
type Action struct {
	// Parameter is a recommendation parameter name, resolved through the
	// ParameterMap.
	Parameter string       `json:"parameter"`
	Value     device.Value `json:"value"`
	Zone      string       `json:"zone,omitempty"`

	// Intensity is the decision process's own measure of how large the
	// change is, 0..1.
	Intensity float64 `json:"intensity,omitempty"`
}

// Recommendation is one entry of a batch.
type Recommendation struct {
	Action          Action  `json:"action"`
	Confidence      float64 `json:"confidence"`
	Rationale       string  `json:"rationale,omitempty"`
	ExpectedOutcome string  `json:"expected_outcome,omitempty"`
}

// Snapshot is the last known environment state.
type Snapshot struct {
	Values    map[Quantity]float64 `json:"values"`
	Timestamp time.Time            `json:"timestamp"`
}

// Value returns the last known value of q.
func (s Snapshot) Value(q Quantity) (float64, bool) {
	if q == "" || s.Values == nil {
		return 0, false
	}
	v, ok := s.Values[q]
	return v, ok
}

func (s Snapshot) clone() Snapshot {
	if s.Values == nil {
		return s
	}
	values := make(map[Quantity]float64, len(s.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	s.Values = values
	return s
}

// Severity grades a plant-health issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// StressOptimal is the stress level that does not raise priority.
const StressOptimal = "optimal"

// HealthIssue is one plant-health finding. An empty Zone applies to the
// whole facility.
type HealthIssue struct {
	Zone        string   `json:"zone,omitempty"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
}

// ZoneHealth is the health score and stress level for one zone.
type ZoneHealth struct {
	Score  *float64 `json:"score,omitempty"`
	Stress string   `json:"stress,omitempty"`
}

// HealthAnalysis is optional plant-health input to priority assignment.
type HealthAnalysis struct {
	Score  *float64              `json:"score,omitempty"`
	Stress string                `json:"stress,omitempty"`
	Zones  map[string]ZoneHealth `json:"zones,omitempty"`
	Issues []HealthIssue         `json:"issues,omitempty"`
}

// Batch is one call from the decision process.
type Batch struct {
	Recommendations []Recommendation `json:"recommendations"`
	State           Snapshot         `json:"state"`
	Health          *HealthAnalysis  `json:"health,omitempty"`
}

// Rejection explains why a recommendation or command was not admitted.
// Command is nil when no command could be built.
type Rejection struct {
	Command *Command `json:"command"`
	Action  Action   `json:"action"`
	Reason  string   `json:"reason"`
}

// BatchResult is the outcome of ProcessRecommendations.
type BatchResult struct {
	Accepted []Command   `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}
