package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/bridge", func(r chi.Router) {
			r.Post("/initialize", s.handleBridgeInitialize)
			r.Post("/refresh", s.handleBridgeRefresh)
			r.Get("/status", s.handleBridgeStatus)
		})

		r.Route("/actuators", func(r chi.Router) {
			r.Post("/{id}/command", s.handleActuatorCommand)
		})
	})

	return r
}

// healthCheckTimeout bounds the backing-store probe in /health.
const healthCheckTimeout = 2 * time.Second

// handleHealth returns the server health status, including the broker
// connection state and, when configured, the database probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	if s.bridge.IsConnected() {
		checks["mqtt"] = "connected"
	} else {
		checks["mqtt"] = "disconnected"
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			checks["database"] = "unhealthy"
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
