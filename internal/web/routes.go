package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	gateHandler := handlers.NewGateHandler(s.gate)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1/gate", func(r chi.Router) {
		r.Get("/status", gateHandler.Status)
		r.Get("/events", gateHandler.Events)

		r.Post("/sessions", gateHandler.StartSession)
		r.Delete("/sessions/current", gateHandler.CancelSession)

		r.Delete("/enrollment", gateHandler.ClearEnrollment)
	})
}
