package control

import "fmt"

// Priority is the dispatch band of a command.
type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityNormal    Priority = "normal"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

// Rank orders priorities; higher dispatches first. Unknown priorities rank
// below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

// ParsePriority converts a name to a Priority. Empty means normal.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityNormal, nil
	}
	p := Priority(s)
	if p.Rank() < 0 {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidCommand, s)
	}
	return p, nil
}

// Origin records who asked for a command.
type Origin string

const (
	OriginRecommendation Origin = "recommendation"
	OriginOperator       Origin = "operator_override"
	OriginSchedule       Origin = "schedule"
	OriginEmergencyStop  Origin = "emergency_stop"
)

// ParseOrigin converts a name to an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(s); o {
	case OriginRecommendation, OriginOperator, OriginSchedule, OriginEmergencyStop:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown origin %q", ErrInvalidCommand, s)
	}
}

// overridesAvailability reports whether the origin may target a device in
// error or maintenance.
func (o Origin) overridesAvailability() bool {
	return o == OriginOperator || o == OriginEmergencyStop
}

// Mode is the control strategy's automation level.
type Mode string

const (
	// ModeManual accepts only operator and emergency-stop commands.
	ModeManual Mode = "manual"
	// ModeScheduled additionally accepts scheduled commands.
	ModeScheduled Mode = "scheduled"
	// ModeAssisted accepts recommendations that pass the approval gate.
	ModeAssisted Mode = "assisted"
	// ModeAutonomous admits the same origins as ModeAssisted. The difference
	// is advisory and reported to the decision process through Status.
	ModeAutonomous Mode = "autonomous"
)

// ParseMode converts a name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeManual, ModeScheduled, ModeAssisted, ModeAutonomous:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidStrategy, s)
	}
}

// accepts reports whether commands of the given origin may be admitted.
func (m Mode) accepts(o Origin) bool {
	switch o {
	case OriginOperator, OriginEmergencyStop:
		return true
	case OriginSchedule:
		return m != ModeManual
	case OriginRecommendation:
		return m == ModeAssisted || m == ModeAutonomous
	default:
		return false
	}
}
