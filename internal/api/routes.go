package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/destination_definitions", h.CreateDestinationDefinition)
			r.Post("/destinations", h.CreateDestination)
			r.Put("/version_overrides", h.SetVersionOverride)

			r.Post("/connections", h.CreateConnection)
			r.Route("/connections/{connection_id}", func(r chi.Router) {
				r.Get("/", h.GetConnection)
				r.Get("/state", h.GetState)
				r.Put("/state", h.PutState)
				r.Get("/generations", h.GetGenerations)
			})

			r.Post("/jobs", h.CreateJob)
			r.Route("/jobs/{job_id}", func(r chi.Router) {
				r.Use(JobMiddleware)
				r.Get("/", h.GetJob)
				r.Post("/attempts", h.CreateAttempt)

				r.Route("/attempts/{attempt_number}", func(r chi.Router) {
					r.Use(AttemptMiddleware)
					r.Get("/", h.GetAttempt)
					r.Get("/stats", h.GetAttemptStats)
					r.Post("/stats", h.SaveStats)
					r.Get("/stream_stats", h.GetAttemptStreamStats)
					r.Post("/fail", h.FailAttempt)
					r.Post("/succeed", h.SucceedAttempt)
					r.Post("/sync_config", h.SaveSyncConfig)
					r.Get("/stream_metadata", h.GetStreamMetadata)
					r.Post("/stream_metadata", h.SaveStreamMetadata)
				})
			})
		})
	})

	return r
}
