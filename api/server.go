/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the learning app frontend

ROUTE GROUPS:
  /api/learners/*   Per-learner progress, completions, redemptions, challenges
  /api/catalog/*    Achievement and reward catalogs
  /api/sync/*       Guest-to-account reconciliation

SECURITY NOTE:
  No authentication middleware currently. The engine runs device-local
  behind the learning app; the identity in the URL is trusted.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Learner routes
		r.Route("/learners/{id}", func(r chi.Router) {
			r.Get("/card", h.GetCard)
			r.Get("/level", h.GetLevel)
			r.Get("/completions", h.GetCompletions)
			r.Post("/completions", h.RecordCompletion)
			r.Get("/redemptions", h.GetRedemptions)

			r.Post("/requests", h.SubmitRequest)
			r.Post("/requests/{requestID}/resolve", h.ResolveRequest)
			r.Post("/redemptions/{redemptionID}/fulfill", h.FulfillRedemption)

			r.Get("/challenges/today", h.TodayChallenges)
			r.Post("/challenges/{challengeID}/complete", h.CompleteChallenge)

			r.Post("/backup", h.TakeBackup)
			r.Post("/reset", h.ResetProgress)
		})

		// Catalog routes
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/achievements", h.ListAchievements)
			r.Get("/rewards", h.ListRewards)
		})

		// Sync routes
		r.Route("/sync", func(r chi.Router) {
			r.Post("/reconcile", h.Reconcile)
		})
	})

	return r
}
