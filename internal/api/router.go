package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check on GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestContextMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// No auth: probes and scrapers
		r.Get("/health", s.handleHealth)
		if s.metrics != nil {
			r.Handle("/metrics", s.metrics)
		}

		// WebSocket authenticates with a ticket in the handler
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Get("/status", s.handleStatus)
			r.Get("/history", s.handleHistory)
			r.Get("/queue", s.handleQueue)
			r.Get("/strategy", s.handleGetStrategy)
			r.Get("/emergency-stop", s.handleGetEmergencyStop)
			r.Get("/log-level", s.handleGetLogLevel)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{id}", s.handleGetDevice)

				r.Group(func(r chi.Router) {
					r.Use(s.requireOperator)
					r.Post("/", s.handleRegisterDevice)
					r.Put("/{id}", s.handleReplaceDevice)
					r.Delete("/{id}", s.handleRemoveDevice)
					r.Put("/{id}/status", s.handleSetDeviceStatus)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireOperator)
				r.Post("/commands", s.handleSubmitCommand)
				r.Post("/recommendations", s.handleProcessRecommendations)
				r.Patch("/strategy", s.handleUpdateStrategy)
				r.Post("/emergency-stop", s.handleEngageEmergencyStop)
				r.Delete("/emergency-stop", s.handleResumeOperations)
				r.Put("/log-level", s.handleSetLogLevel)
			})
		})
	})

	return r
}

// handleHealth reports the server version and each infrastructure check.
// Any failing check turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
