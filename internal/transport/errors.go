package transport

import "errors"

// Domain errors for the transport package.
var (
	// ErrTimeout indicates the device did not acknowledge within the deadline.
	ErrTimeout = errors.New("transport timeout")

	// ErrRejected indicates the device or its bridge refused the write.
	ErrRejected = errors.New("write rejected by device")

	// ErrUnsupported indicates no adapter is configured for the transport kind.
	ErrUnsupported = errors.New("unsupported transport")

	// ErrCircuitOpen indicates the device's breaker is open.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrInvalidRequest indicates a request missing required fields.
	ErrInvalidRequest = errors.New("invalid transport request")
)
