package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/agentstation/pubmap/internal/server/middleware"
	"github.com/agentstation/pubmap/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method)
	})
	return r
}

// handleHealth handles GET /healthz (liveness probe).
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "pubmap",
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, s.tracker.Status())
}
