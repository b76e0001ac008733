package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeRejection maps a controller rejection onto an HTTP error.
//
// Capacity, conflict and interlock rejections are 409 because retrying later
// may succeed; safety and approval rejections are 422. The code is the
// control.ReasonCode so clients can branch on it.
func writeRejection(w http.ResponseWriter, err error) {
	code := control.ReasonCode(err)
	switch {
	case errors.Is(err, control.ErrNotFound), errors.Is(err, device.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, control.ErrConflict),
		errors.Is(err, control.ErrQueueFull),
		errors.Is(err, control.ErrEmergencyStop):
		writeError(w, http.StatusConflict, code, err.Error())
	case errors.Is(err, control.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, code, err.Error())
	case code != "other":
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// isValidationError reports whether err is a device or strategy validation
// failure that should be returned as 400.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidCategory) ||
		errors.Is(err, device.ErrInvalidTransport) ||
		errors.Is(err, device.ErrInvalidStatus) ||
		errors.Is(err, device.ErrInvalidParameter) ||
		errors.Is(err, device.ErrInvalidValue) ||
		errors.Is(err, control.ErrInvalidStrategy)
}
