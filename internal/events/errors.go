package events

import "errors"

var (
	// ErrInvalidBatch is returned when a recommendation batch cannot be decoded.
	ErrInvalidBatch = errors.New("invalid recommendation batch")

	// ErrBufferFull is reported when the publisher drops an event.
	ErrBufferFull = errors.New("event buffer full")
)
