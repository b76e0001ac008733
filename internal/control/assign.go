package control

// PriorityPolicy computes a recommendation's priority from plant health.
type PriorityPolicy struct {
	// HealthScoreThreshold raises priority to high when the associated
	// health score is below it.
	HealthScoreThreshold float64

	// IntensityThreshold raises priority to high when the action's
	// intensity exceeds it.
	IntensityThreshold float64
}

// Assign returns the priority for an action. Issues, scores and stress are
// associated with the action when they are facility-wide or name its zone.
func (p PriorityPolicy) Assign(action Action, health *HealthAnalysis) Priority {
	if health != nil {
		for _, issue := range health.Issues {
			if issue.Severity == SeverityCritical && associated(issue.Zone, action.Zone) {
				return PriorityEmergency
			}
		}
		score, stress := health.Score, health.Stress
		if zh, ok := health.Zones[action.Zone]; ok && action.Zone != "" {
			if zh.Score != nil {
				score = zh.Score
			}
			if zh.Stress != "" {
				stress = zh.Stress
			}
		}
		if score != nil && *score < p.HealthScoreThreshold {
			return PriorityHigh
		}
		if stress != "" && stress != StressOptimal {
			return PriorityHigh
		}
	}
	if action.Intensity > p.IntensityThreshold {
		return PriorityHigh
	}
	return PriorityNormal
}

func associated(issueZone, actionZone string) bool {
	return issueZone == "" || issueZone == actionZone
}
