package control

import "fmt"

// approve is the approval gate. It runs after validation.
//
// Operator and emergency-stop commands are themselves the human decision
// and skip the confidence and approval filters. names are extra parameter
// names matched against the approval-required set, such as the
// recommendation's own parameter name.
func approve(cmd Command, strat Strategy, names ...string) error {
	if !strat.Mode.accepts(cmd.Origin) {
		return fmt.Errorf("%w: %s mode, origin %s", ErrModeForbids, strat.Mode, cmd.Origin)
	}
	if cmd.Origin.overridesAvailability() {
		return nil
	}

	if cmd.Origin == OriginRecommendation && cmd.Confidence < strat.ConfidenceThreshold {
		return fmt.Errorf("%w: confidence %.2f below threshold %.2f",
			ErrLowConfidence, cmd.Confidence, strat.ConfidenceThreshold)
	}

	all := append([]string{cmd.Parameter, string(cmd.Quantity)}, names...)
	if strat.requiresApproval(all...) && cmd.Priority.Rank() < PriorityHigh.Rank() {
		return fmt.Errorf("%w: %s at %s priority", ErrApprovalRequired, cmd.Key(), cmd.Priority)
	}
	return nil
}
