package control

import (
	"time"

	"github.com/nerrad567/actuator-core/internal/device"
)

// Command is a validated instruction to set one device parameter.
//
// Commands are values; once admitted, only their queue position changes.
type Command struct {
	ID         string       `json:"id"`
	DeviceID   string       `json:"device_id"`
	Parameter  string       `json:"parameter"`
	Quantity   Quantity     `json:"quantity,omitempty"`
	Value      device.Value `json:"value"`
	Priority   Priority     `json:"priority"`
	Origin     Origin       `json:"origin"`
	Rationale  string       `json:"rationale,omitempty"`
	Confidence float64      `json:"confidence,omitempty"` // recommendation origin only
	CreatedAt  time.Time    `json:"created_at"`
	Deadline   time.Time    `json:"deadline,omitzero"`
}

// Key identifies the device parameter a command writes. At most one
// command per key is pending.
func (c Command) Key() string {
	return c.DeviceID + "/" + c.Parameter
}

// Expired reports whether the command has a deadline that is before now.
func (c Command) Expired(now time.Time) bool {
	return !c.Deadline.IsZero() && now.After(c.Deadline)
}

// CommandRequest is an operator or schedule request to set a parameter.
type CommandRequest struct {
	DeviceID  string       `json:"device_id"`
	Parameter string       `json:"parameter"`
	Value     device.Value `json:"value"`
	Priority  Priority     `json:"priority,omitempty"`
	Origin    Origin       `json:"origin,omitempty"`
	Rationale string       `json:"rationale,omitempty"`
	Deadline  time.Time    `json:"deadline,omitzero"`
}
