package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrNotConnected     = errors.New("influxdb: client closed")
	ErrUnhealthy        = errors.New("influxdb: server reports unhealthy")

	// ErrWriteFailed wraps batch failures passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
