package main

import (
	"fmt"
	"time"

	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
)

// controlOptions converts the control and safety sections of the
// configuration into controller options. The result is validated by
// control.New; this only resolves names to typed values.
func controlOptions(cfg *config.Config) (control.Options, error) {
	modeName := cfg.Control.Mode
	if modeName == "" {
		modeName = string(control.ModeAssisted)
	}
	mode, err := control.ParseMode(modeName)
	if err != nil {
		return control.Options{}, err
	}

	envelope := make(control.Envelope, len(cfg.Safety.Envelope))
	for name, limit := range cfg.Safety.Envelope {
		q, err := control.ParseQuantity(name)
		if err != nil {
			return control.Options{}, fmt.Errorf("safety.envelope: %w", err)
		}
		envelope[q] = control.Limit{
			Min:            limit.Min,
			Max:            limit.Max,
			MaxRatePerHour: limit.MaxRatePerHour,
		}
	}

	pmap := make(control.ParameterMap, len(cfg.Control.ParameterMap))
	for name, target := range cfg.Control.ParameterMap {
		var q control.Quantity
		if target.Quantity != "" {
			if q, err = control.ParseQuantity(target.Quantity); err != nil {
				return control.Options{}, fmt.Errorf("control.parameter_map.%s: %w", name, err)
			}
		}
		pmap[name] = control.Target{
			Quantity:  q,
			Category:  device.Category(target.Category),
			Parameter: target.Parameter,
		}
	}

	return control.Options{
		Strategy: control.Strategy{
			Mode:                   mode,
			ConfidenceThreshold:    cfg.Control.ConfidenceThreshold,
			SafetyOverrides:        cfg.Control.SafetyOverrides,
			EmergencyStopEnabled:   cfg.Control.EmergencyStopEnabled,
			ApprovalRequired:       append([]string(nil), cfg.Control.ApprovalRequired...),
			MaxSimultaneousChanges: cfg.Control.MaxSimultaneousChanges,
			ValidationWindow:       cfg.GetValidationWindow(),
		},
		Envelope:     envelope,
		ParameterMap: pmap,
		Priority: control.PriorityPolicy{
			HealthScoreThreshold: cfg.Control.Priority.HealthScoreThreshold,
			IntensityThreshold:   cfg.Control.Priority.IntensityThreshold,
		},
		TransportTimeout: cfg.GetTransportTimeout(),
		DispatchInterval: cfg.GetDispatchInterval(),
	}, nil
}

// breakerSettings converts the breaker section; OpenSeconds of zero keeps
// the adapter default.
func breakerSettings(cfg config.BreakerConfig) (threshold uint32, open time.Duration) {
	if cfg.FailureThreshold > 0 {
		threshold = uint32(cfg.FailureThreshold) // #nosec G115 -- validated positive
	}
	return threshold, time.Duration(cfg.OpenSeconds) * time.Second
}
