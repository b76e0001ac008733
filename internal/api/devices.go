package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/actuator-core/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - category: filter by category (climate, irrigation, ...)
//   - zone: filter by zone
//   - status: filter by health status (online, degraded, error, maintenance)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := device.Category(q.Get("category"))
	zone := q.Get("zone")
	status := device.HealthStatus(q.Get("status"))

	all := s.controller.Devices()
	devices := make([]device.Device, 0, len(all))
	for _, d := range all {
		if category != "" && d.Category != category {
			continue
		}
		if zone != "" && d.Zone != zone {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		devices = append(devices, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.controller.Device(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleRegisterDevice registers a new device or replaces an existing one.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.registerDevice(w, r, dev, http.StatusCreated)
}

// handleReplaceDevice replaces the device named in the path.
func (s *Server) handleReplaceDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	id := chi.URLParam(r, "id")
	if dev.ID == "" {
		dev.ID = id
	}
	if dev.ID != id {
		writeBadRequest(w, "device id in body does not match path")
		return
	}
	s.registerDevice(w, r, dev, http.StatusOK)
}

func (s *Server) registerDevice(w http.ResponseWriter, r *http.Request, dev device.Device, status int) {
	stored, err := s.controller.RegisterDevice(r.Context(), dev)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		if stored == nil {
			writeInternalError(w, "failed to register device")
			return
		}
		// The cache is authoritative when write-through fails.
		s.log(r).Warn("device registered but not persisted", "id", dev.ID, "error", err)
	}
	writeJSON(w, status, stored)
}

// handleRemoveDevice deletes a device. Queued commands for it fail at
// execution without reaching the transport.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.controller.RemoveDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.log(r).Warn("device removed but not deleted from store", "id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status device.HealthStatus `json:"status"`
}

// handleSetDeviceStatus changes a device's health status, e.g. to take it
// into or out of maintenance.
func (s *Server) handleSetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	dev, err := s.controller.SetDeviceStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
			return
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		case dev == nil:
			writeInternalError(w, "failed to set device status")
			return
		}
		s.log(r).Warn("device status set but not persisted", "id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, dev)
}
