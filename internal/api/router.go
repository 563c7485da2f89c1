package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)

			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEntity)
					r.Get("/history", s.handleEntityHistory)
					r.With(s.requireControl).Post("/actions", s.handleEntityAction)
					r.With(s.requireControl).Post("/command", s.handleEntityCommand)
				})
			})

			r.Get("/devices", s.handleListDevices)
			r.With(s.requireControl).Post("/diagnostics", s.handleDiagnostics)

			// WebSocket (bearer header or token query parameter)
			r.Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

// wsPath returns the configured WebSocket path under /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server and bridge health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.bridge.Status()
	status := "ok"
	if !st.Ready || st.LastError != "" {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"bridge":  st,
	})
}
