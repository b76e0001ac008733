package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/actuator-core/internal/control"
)

// commandResponse wraps an accepted command.
type commandResponse struct {
	Command control.Command `json:"command"`
}

// handleSubmitCommand enqueues an operator override or scheduled command.
// Emergency-stop-origin commands are forced to emergency priority.
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req control.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if claims := claimsFromContext(r.Context()); claims != nil && req.Rationale == "" {
		req.Rationale = "submitted by " + claims.Subject
	}

	cmd, err := s.controller.SubmitCommand(r.Context(), req)
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse{Command: cmd})
}

// handleProcessRecommendations feeds a recommendation batch to the
// controller. Partial acceptance is normal, so the response is always 200
// with accepted and rejected lists.
func (s *Server) handleProcessRecommendations(w http.ResponseWriter, r *http.Request) {
	var batch control.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(batch.Recommendations) == 0 {
		writeBadRequest(w, "recommendations must not be empty")
		return
	}

	result := s.controller.ProcessRecommendations(r.Context(), batch)
	if result.Accepted == nil {
		result.Accepted = []control.Command{}
	}
	if result.Rejected == nil {
		result.Rejected = []control.Rejection{}
	}
	writeJSON(w, http.StatusOK, result)
}

// handleQueue returns queued commands in dispatch order.
func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	queued := s.controller.Queued()
	if queued == nil {
		queued = []control.Command{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": queued, "count": len(queued)})
}
