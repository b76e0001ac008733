package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/control"
)

// maxHistoryLimit caps the limit query parameter on GET /history.
const maxHistoryLimit = 1000

// handleStatus returns the controller status summary.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// handleHistory returns execution outcomes, newest first.
//
// Query parameters:
//   - device_id: only outcomes for this device
//   - failures_only: "true" to return failed executions only
//   - since: RFC 3339 timestamp, inclusive
//   - limit: maximum number of outcomes (default 50, max 1000)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{DeviceID: q.Get("device_id")}

	if v := q.Get("failures_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "failures_only must be true or false")
			return
		}
		filter.FailuresOnly = b
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxHistoryLimit)
	}

	writeJSON(w, http.StatusOK, s.controller.History(filter))
}

// handleGetEmergencyStop returns the interlock state.
func (s *Server) handleGetEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.EmergencyStop())
}

type emergencyStopRequest struct {
	Reason string `json:"reason"`
}

// handleEngageEmergencyStop engages the interlock. The body is optional.
func (s *Server) handleEngageEmergencyStop(w http.ResponseWriter, r *http.Request) {
	var req emergencyStopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := s.controller.EngageEmergencyStop(req.Reason)
	if err != nil {
		if errors.Is(err, control.ErrEmergencyStopDisabled) {
			writeForbidden(w, err.Error())
			return
		}
		writeInternalError(w, "failed to engage emergency stop")
		return
	}

	s.log(r).Warn("emergency stop requested via API", "reason", state.Reason)
	writeJSON(w, http.StatusOK, state)
}

// handleResumeOperations lifts the interlock.
func (s *Server) handleResumeOperations(w http.ResponseWriter, r *http.Request) {
	state := s.controller.ResumeOperations()
	s.log(r).Warn("resume requested via API")
	writeJSON(w, http.StatusOK, state)
}

type logLevelRequest struct {
	Level string `json:"level"`
}

// handleGetLogLevel returns the current log level.
func (s *Server) handleGetLogLevel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, logLevelRequest{Level: s.logger.Level()})
}

// handleSetLogLevel changes the log level of every component until
// restart.
func (s *Server) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req logLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	previous := s.logger.Level()
	if err := s.logger.SetLevel(req.Level); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	s.log(r).Info("log level changed", "from", previous, "to", s.logger.Level())
	writeJSON(w, http.StatusOK, logLevelRequest{Level: s.logger.Level()})
}
