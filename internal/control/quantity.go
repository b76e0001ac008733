package control

import (
	"fmt"
	"math"
	"sort"
)

// Quantity is a physical quantity with a safety envelope.
type Quantity string

const (
	QuantityTemperature    Quantity = "temperature"
	QuantityHumidity       Quantity = "humidity"
	QuantityCO2            Quantity = "co2"
	QuantityLightIntensity Quantity = "light_intensity"
	QuantityPH             Quantity = "ph"
	QuantityEC             Quantity = "ec"
)

// AllQuantities returns every known quantity.
func AllQuantities() []Quantity {
	return []Quantity{
		QuantityTemperature, QuantityHumidity, QuantityCO2,
		QuantityLightIntensity, QuantityPH, QuantityEC,
	}
}

// ParseQuantity converts a name to a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	for _, q := range AllQuantities() {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownQuantity, s)
}

// Limit is the absolute range and hourly rate limit for one quantity.
type Limit struct {
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	MaxRatePerHour float64 `json:"max_rate_per_hour"`
}

// Envelope holds the limits for each quantity. A quantity without an entry
// is constrained only by device parameter ranges.
type Envelope map[Quantity]Limit

// Validate checks every limit.
func (e Envelope) Validate() error {
	for _, q := range e.quantities() {
		l := e[q]
		if _, err := ParseQuantity(string(q)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
		}
		if math.IsNaN(l.Min) || math.IsNaN(l.Max) || l.Min >= l.Max {
			return fmt.Errorf("%w: %s range [%g, %g]", ErrInvalidEnvelope, q, l.Min, l.Max)
		}
		if l.MaxRatePerHour < 0 {
			return fmt.Errorf("%w: %s rate limit is negative", ErrInvalidEnvelope, q)
		}
	}
	return nil
}

// Effective intersects a parameter range with the quantity's envelope.
// ok is false when the two do not overlap.
func (e Envelope) Effective(q Quantity, minV, maxV float64) (lo, hi float64, ok bool) {
	lo, hi = minV, maxV
	if l, found := e[q]; found && q != "" {
		lo = math.Max(lo, l.Min)
		hi = math.Min(hi, l.Max)
	}
	return lo, hi, lo <= hi
}

func (e Envelope) quantities() []Quantity {
	qs := make([]Quantity, 0, len(e))
	for q := range e {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i] < qs[j] })
	return qs
}
