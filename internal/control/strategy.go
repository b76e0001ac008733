package control

import (
	"fmt"
	"slices"
	"time"
)

// Strategy is the process-wide control policy.
type Strategy struct {
	Mode                   Mode          `json:"mode"`
	ConfidenceThreshold    float64       `json:"confidence_threshold"`
	SafetyOverrides        bool          `json:"safety_overrides"`
	EmergencyStopEnabled   bool          `json:"emergency_stop_enabled"`
	ApprovalRequired       []string      `json:"approval_required"`
	MaxSimultaneousChanges int           `json:"max_simultaneous_changes"`
	ValidationWindow       time.Duration `json:"-"`
}

// Validate checks the strategy's fields.
func (s Strategy) Validate() error {
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %g outside [0, 1]", ErrInvalidStrategy, s.ConfidenceThreshold)
	}
	if s.MaxSimultaneousChanges < 1 {
		return fmt.Errorf("%w: max simultaneous changes must be at least 1", ErrInvalidStrategy)
	}
	if s.ValidationWindow < 0 {
		return fmt.Errorf("%w: validation window is negative", ErrInvalidStrategy)
	}
	return nil
}

func (s Strategy) clone() Strategy {
	s.ApprovalRequired = slices.Clone(s.ApprovalRequired)
	return s
}

func (s Strategy) requiresApproval(names ...string) bool {
	for _, n := range names {
		if n != "" && slices.Contains(s.ApprovalRequired, n) {
			return true
		}
	}
	return false
}

// StrategyUpdate is a partial strategy; nil fields are left unchanged.
type StrategyUpdate struct {
	Mode                   *Mode          `json:"mode,omitempty"`
	ConfidenceThreshold    *float64       `json:"confidence_threshold,omitempty"`
	SafetyOverrides        *bool          `json:"safety_overrides,omitempty"`
	EmergencyStopEnabled   *bool          `json:"emergency_stop_enabled,omitempty"`
	ApprovalRequired       *[]string      `json:"approval_required,omitempty"`
	MaxSimultaneousChanges *int           `json:"max_simultaneous_changes,omitempty"`
	ValidationWindow       *time.Duration `json:"-"`
}

// Apply returns s with the update's non-nil fields applied and validated.
func (s Strategy) Apply(u StrategyUpdate) (Strategy, error) {
	next := s.clone()
	if u.Mode != nil {
		next.Mode = *u.Mode
	}
	if u.ConfidenceThreshold != nil {
		next.ConfidenceThreshold = *u.ConfidenceThreshold
	}
	if u.SafetyOverrides != nil {
		next.SafetyOverrides = *u.SafetyOverrides
	}
	if u.EmergencyStopEnabled != nil {
		next.EmergencyStopEnabled = *u.EmergencyStopEnabled
	}
	if u.ApprovalRequired != nil {
		next.ApprovalRequired = slices.Clone(*u.ApprovalRequired)
	}
	if u.MaxSimultaneousChanges != nil {
		next.MaxSimultaneousChanges = *u.MaxSimultaneousChanges
	}
	if u.ValidationWindow != nil {
		next.ValidationWindow = *u.ValidationWindow
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}
