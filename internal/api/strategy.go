package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/actuator-core/internal/control"
)

// strategyResponse adds the validation window in seconds, which
// control.Strategy does not serialise.
type strategyResponse struct {
	control.Strategy
	ValidationWindowSeconds float64 `json:"validation_window_seconds"`
}

func newStrategyResponse(s control.Strategy) strategyResponse {
	return strategyResponse{Strategy: s, ValidationWindowSeconds: s.ValidationWindow.Seconds()}
}

// strategyPatch is a partial strategy; omitted fields are unchanged.
type strategyPatch struct {
	control.StrategyUpdate
	ValidationWindowSeconds *float64 `json:"validation_window_seconds,omitempty"`
}

// handleGetStrategy returns the current control strategy.
func (s *Server) handleGetStrategy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStrategyResponse(s.controller.Strategy()))
}

// handleUpdateStrategy applies a partial strategy update. An invalid result
// leaves the strategy unchanged.
func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	var patch strategyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	update := patch.StrategyUpdate
	if patch.ValidationWindowSeconds != nil {
		window := time.Duration(*patch.ValidationWindowSeconds * float64(time.Second))
		update.ValidationWindow = &window
	}

	next, err := s.controller.UpdateStrategy(update)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStrategyResponse(next))
}
