package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FailureThreshold is the number of consecutive failed executions after
// which a device is marked StatusError.
const FailureThreshold = 3

// Device is a piece of physical equipment the core can command.
type Device struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Category  Category  `json:"category" yaml:"category"`
	Zone      string    `json:"zone,omitempty" yaml:"zone"`
	Transport Transport `json:"transport" yaml:"transport"`

	// Address is the transport-level address (bridge topic suffix, modbus
	// unit, BACnet object, URL). Its format belongs to the transport.
	Address string `json:"address,omitempty" yaml:"address"`

	Parameters map[string]Parameter `json:"parameters" yaml:"parameters"`

	Status              HealthStatus `json:"status" yaml:"status"`
	LastResponse        *time.Time   `json:"last_response,omitempty" yaml:"-"`
	ConsecutiveFailures int          `json:"consecutive_failures" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Parameter is one writable point on a device.
type Parameter struct {
	// Address is the register / object number used by the transport.
	Address int       `json:"address" yaml:"address"`
	Kind    ValueKind `json:"kind" yaml:"kind"`

	// Min and Max bound numeric writes. Ignored for boolean parameters.
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Unit string  `json:"unit,omitempty" yaml:"unit"`
}

// Contains reports whether v lies within [Min, Max].
func (p Parameter) Contains(v float64) bool {
	return v >= p.Min && v <= p.Max
}

// DeepCopy returns an independent copy of the device. The registry hands
// out copies so callers can never mutate cached state.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	if d.Parameters != nil {
		cpy.Parameters = make(map[string]Parameter, len(d.Parameters))
		for k, v := range d.Parameters {
			cpy.Parameters[k] = v
		}
	}
	if d.LastResponse != nil {
		t := *d.LastResponse
		cpy.LastResponse = &t
	}
	return &cpy
}

// Parameter looks up a parameter by name.
func (d *Device) Parameter(name string) (Parameter, bool) {
	p, ok := d.Parameters[name]
	return p, ok
}

// Available reports whether the device may receive non-overridden commands.
func (d *Device) Available() bool {
	return d.Status == StatusOnline || d.Status == StatusDegraded
}

// Category is the kind of equipment.
type Category string

const (
	CategoryClimate     Category = "climate"
	CategoryLighting    Category = "lighting"
	CategoryIrrigation  Category = "irrigation"
	CategoryGas         Category = "gas"
	CategoryVentilation Category = "ventilation"
	CategoryNutrient    Category = "nutrient"
	CategoryAcidity     Category = "acidity"
)

// AllCategories returns every known category.
func AllCategories() []Category {
	return []Category{
		CategoryClimate, CategoryLighting, CategoryIrrigation, CategoryGas,
		CategoryVentilation, CategoryNutrient, CategoryAcidity,
	}
}

// Transport is the protocol family used to reach a device.
type Transport string

const (
	TransportMQTT      Transport = "mqtt"
	TransportModbus    Transport = "modbus"
	TransportBACnet    Transport = "bacnet"
	TransportHTTP      Transport = "http"
	TransportSimulated Transport = "simulated"
)

// AllTransports returns every known transport.
func AllTransports() []Transport {
	return []Transport{TransportMQTT, TransportModbus, TransportBACnet, TransportHTTP, TransportSimulated}
}

// HealthStatus is the device's operational state.
type HealthStatus string

const (
	StatusOnline      HealthStatus = "online"
	StatusDegraded    HealthStatus = "degraded"
	StatusError       HealthStatus = "error"
	StatusMaintenance HealthStatus = "maintenance"
)

// AllHealthStatuses returns every known status.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{StatusOnline, StatusDegraded, StatusError, StatusMaintenance}
}

// ValueKind is the type of value a parameter accepts.
type ValueKind string

const (
	KindBoolean ValueKind = "boolean"
	KindInteger ValueKind = "integer"
	KindFloat   ValueKind = "float"
)

// AllValueKinds returns every known value kind.
func AllValueKinds() []ValueKind {
	return []ValueKind{KindBoolean, KindInteger, KindFloat}
}

// Value is a setpoint: either a number or a boolean.
// On the wire it is a bare JSON number or boolean.
type Value struct {
	IsBool bool
	Number float64
	Bool   bool
}

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value { return Value{Number: n} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{IsBool: true, Bool: b} }

// Fits reports whether the value's kind matches what the parameter accepts.
// Integer parameters accept only whole numbers.
func (v Value) Fits(p Parameter) bool {
	switch p.Kind {
	case KindBoolean:
		return v.IsBool
	case KindInteger:
		return !v.IsBool && v.Number == float64(int64(v.Number))
	case KindFloat:
		return !v.IsBool
	default:
		return false
	}
}

func (v Value) String() string {
	if v.IsBool {
		return strconv.FormatBool(v.Bool)
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// MarshalJSON encodes the value as a JSON number or boolean.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsBool {
		return json.Marshal(v.Bool)
	}
	return json.Marshal(v.Number)
}

// UnmarshalJSON accepts a JSON number or boolean.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = BoolValue(x)
	case float64:
		*v = NumberValue(x)
	default:
		return fmt.Errorf("%w: value must be a number or boolean", ErrInvalidValue)
	}
	return nil
}
