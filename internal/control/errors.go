package control

import "errors"

// Rejection reasons. Their messages are surfaced to submitters verbatim,
// wrapped with the specifics of the rejected command.
var (
	ErrNotFound          = errors.New("device/parameter not found")
	ErrValueKind         = errors.New("value kind does not match parameter")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrOutOfRange        = errors.New("value outside safe range")
	ErrRateExceeded      = errors.New("rate of change exceeds safety limit")
	ErrConflict          = errors.New("conflicting command already pending")
	ErrQueueFull         = errors.New("queue full — too many simultaneous changes")
	ErrNoDevice          = errors.New("no device available for this recommendation")
	ErrLowConfidence     = errors.New("confidence below threshold")
	ErrApprovalRequired  = errors.New("human approval required")
	ErrModeForbids       = errors.New("control mode does not accept this origin")
	ErrEmergencyStop     = errors.New("emergency stop engaged")
)

// Management errors.
var (
	ErrEmergencyStopDisabled = errors.New("emergency stop is disabled by strategy")
	ErrInvalidCommand        = errors.New("invalid command")
	ErrInvalidStrategy       = errors.New("invalid control strategy")
	ErrInvalidEnvelope       = errors.New("invalid safety envelope")
	ErrInvalidParameterMap   = errors.New("invalid parameter map")
	ErrUnknownQuantity       = errors.New("unknown quantity")
)

// reasonCodes maps rejection sentinels to short stable codes for metrics
// labels and API error bodies.
var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrValueKind, "value_kind"},
	{ErrDeviceUnavailable, "device_unavailable"},
	{ErrOutOfRange, "out_of_range"},
	{ErrRateExceeded, "rate_exceeded"},
	{ErrConflict, "conflict"},
	{ErrQueueFull, "queue_full"},
	{ErrNoDevice, "no_device"},
	{ErrLowConfidence, "low_confidence"},
	{ErrApprovalRequired, "approval_required"},
	{ErrModeForbids, "mode_forbids"},
	{ErrEmergencyStop, "emergency_stop"},
	{ErrInvalidCommand, "invalid_command"},
}

// ReasonCode returns a short code for a rejection error, or "other".
func ReasonCode(err error) string {
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "other"
}
