package control

import (
	"fmt"
	"sort"

	"github.com/nerrad567/actuator-core/internal/device"
)

// Target is the device parameter a recommendation parameter resolves to.
// Quantity is empty for parameters without a safety envelope.
type Target struct {
	Quantity  Quantity        `json:"quantity,omitempty"`
	Category  device.Category `json:"category"`
	Parameter string          `json:"parameter"`
}

// ParameterMap maps recommendation parameter names to device parameters.
type ParameterMap map[string]Target

// Validate checks every entry. It runs once at startup.
func (m ParameterMap) Validate() error {
	categories := make(map[device.Category]bool)
	for _, c := range device.AllCategories() {
		categories[c] = true
	}

	for _, name := range m.names() {
		t := m[name]
		if t.Quantity != "" {
			if _, err := ParseQuantity(string(t.Quantity)); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidParameterMap, name, err)
			}
		}
		if !categories[t.Category] {
			return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidParameterMap, name, t.Category)
		}
		if err := device.ValidateParameter(t.Parameter, device.Parameter{Kind: device.KindFloat}); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidParameterMap, name, err)
		}
	}
	return nil
}

// Resolve looks up a recommendation parameter name.
func (m ParameterMap) Resolve(name string) (Target, bool) {
	t, ok := m[name]
	return t, ok
}

// QuantityFor returns the quantity of the entry that targets the given
// device category and parameter, so operator commands get the same
// envelope checks as recommendations.
func (m ParameterMap) QuantityFor(category device.Category, parameter string) Quantity {
	for _, name := range m.names() {
		t := m[name]
		if t.Category == category && t.Parameter == parameter {
			return t.Quantity
		}
	}
	return ""
}

func (m ParameterMap) names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
