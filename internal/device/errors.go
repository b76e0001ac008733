package device

import "errors"

// Sentinel errors for the device package. Check with errors.Is.
var (
	ErrDeviceNotFound    = errors.New("device: not found")
	ErrInvalidDevice     = errors.New("device: invalid")
	ErrInvalidCategory   = errors.New("device: invalid category")
	ErrInvalidTransport  = errors.New("device: invalid transport")
	ErrInvalidStatus     = errors.New("device: invalid status")
	ErrInvalidParameter  = errors.New("device: invalid parameter")
	ErrInvalidValue      = errors.New("device: invalid value")
	ErrNoAvailableDevice = errors.New("device: no available device")
	ErrSeedFile          = errors.New("device: invalid seed file")
)
