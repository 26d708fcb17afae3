package routes

import (
	"github.com/BradenHooton/authwatch/internal/auth"
	"github.com/BradenHooton/authwatch/internal/handlers"
	"github.com/BradenHooton/authwatch/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	failureHandler *handlers.FailureHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
	apiKeys *auth.APIKeyVerifier,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Get("/health", healthHandler.Health)

	// Reporting services only
	router.Route("/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))
		r.Use(auth.RequireReporter(tokenManager, apiKeys))

		r.Post("/failures", failureHandler.Record)
	})
}
