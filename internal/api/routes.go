package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the operational API.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs/{name}", h.TriggerJob)
		r.Post("/publish/{platform}", h.TriggerPublish)

		r.Get("/arms", h.GetArms)
		r.Get("/weights", h.GetWeights)
		r.Get("/distribution", h.GetDistribution)

		r.Get("/killswitch", h.GetKillSwitch)
		r.Post("/killswitch", h.EngageKillSwitch)
		r.Delete("/killswitch", h.DisengageKillSwitch)
	})

	return r
}
