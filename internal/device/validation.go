package device

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	maxNameLength    = 100
	maxParameters    = 64
	idPattern        = `^[a-z0-9][a-z0-9_-]{0,63}$`
	parameterPattern = `^[a-z][a-z0-9_]{0,63}$`
)

var (
	idRegex        = regexp.MustCompile(idPattern)
	parameterRegex = regexp.MustCompile(parameterPattern)
)

var (
	validCategories = setOf(AllCategories())
	validTransports = setOf(AllTransports())
	validStatuses   = setOf(AllHealthStatuses())
	validKinds      = setOf(AllValueKinds())
)

func setOf[T comparable](values []T) map[T]struct{} {
	m := make(map[T]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// ValidateDevice checks a device definition and returns the first problem found.
// An empty Status is accepted; the registry defaults it to online.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if !idRegex.MatchString(d.ID) {
		return fmt.Errorf("%w: id %q must be lowercase letters, digits, '_' or '-'", ErrInvalidDevice, d.ID)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}
	if _, ok := validCategories[d.Category]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	}
	if _, ok := validTransports[d.Transport]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTransport, d.Transport)
	}
	if d.Status != "" {
		if _, ok := validStatuses[d.Status]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
		}
	}
	if len(d.Parameters) == 0 {
		return fmt.Errorf("%w: at least one parameter is required", ErrInvalidParameter)
	}
	if len(d.Parameters) > maxParameters {
		return fmt.Errorf("%w: more than %d parameters", ErrInvalidParameter, maxParameters)
	}
	for name, p := range d.Parameters {
		if err := ValidateParameter(name, p); err != nil {
			return err
		}
	}
	return nil
}

// ValidateParameter checks a single parameter definition.
func ValidateParameter(name string, p Parameter) error {
	if !parameterRegex.MatchString(name) {
		return fmt.Errorf("%w: name %q must be snake_case", ErrInvalidParameter, name)
	}
	if _, ok := validKinds[p.Kind]; !ok {
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidParameter, name, p.Kind)
	}
	if p.Address < 0 {
		return fmt.Errorf("%w: %s has negative address", ErrInvalidParameter, name)
	}
	if p.Kind != KindBoolean && !(finite(p.Min) && finite(p.Max)) {
		return fmt.Errorf("%w: %s range [%g, %g] must be finite", ErrInvalidParameter, name, p.Min, p.Max)
	}
	if p.Kind != KindBoolean && p.Min > p.Max {
		return fmt.Errorf("%w: %s range [%g, %g] is inverted", ErrInvalidParameter, name, p.Min, p.Max)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidateStatus checks a health status value.
func ValidateStatus(s HealthStatus) error {
	if _, ok := validStatuses[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}
