package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"factory-hook/internal/config"
	"factory-hook/internal/middleware"
)

// NewRouter wires the HTTP surface. Probes are unauthenticated; the webhook
// and the admin endpoints sit behind the optional bearer authentication.
func NewRouter(cfg *config.Config, events *EventHandler, settings *SettingsHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeadersMiddleware())

	r.Get("/health", health.HandleHealth)
	r.Get("/ready", health.HandleReady)

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware())
		r.Use(middleware.AuthenticationMiddleware(cfg))
		r.Use(chimiddleware.Timeout(cfg.HTTPTimeout + 5*time.Second))

		r.Post("/events", events.HandleEvents)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/settings", settings.HandleGet)
			r.Put("/settings", settings.HandlePut)
		})
	})

	return r
}
