package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/messaging-permissions/internal/auth"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
	"github.com/frahmantamala/messaging-permissions/internal/transport/middleware"
	"github.com/frahmantamala/messaging-permissions/internal/transport/swagger"
	"github.com/frahmantamala/messaging-permissions/internal/user"
)

// RegisterAllRoutes mounts the API under /api/v1. db may be nil when the
// permission store runs in memory; validator may be nil to skip request
// validation against the OpenAPI document.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authHandler *auth.Handler, userHandler *user.Handler, permissionHandler *permission.Handler, roles *auth.RoleAuthorization, validator *middleware.OpenAPIValidator, specPath string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// API document and UI live outside the versioned prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api/v1", func(r chi.Router) {
		if validator != nil {
			r.Use(validator.Middleware)
		}

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Get("/users/me", userHandler.GetCurrentUser)

			pr.Route("/messaging", func(mr chi.Router) {
				mr.Post("/requests", permissionHandler.RequestPermission)
				mr.Patch("/requests/{id}", permissionHandler.RespondToRequest)
				mr.Get("/can-message/{recipientId}", permissionHandler.CanMessage)

				mr.Post("/blocks/{userId}", permissionHandler.Block)
				mr.Delete("/blocks/{userId}", permissionHandler.Unblock)

				mr.Get("/permissions/incoming", permissionHandler.ListIncoming)
				mr.Get("/permissions/outgoing", permissionHandler.ListOutgoing)
				mr.Get("/permissions/active", permissionHandler.ListActive)
				mr.Get("/permissions/stats", permissionHandler.Stats)

				mr.Post("/sponsors/{employerId}/renewals", permissionHandler.RenewForSponsor)
			})

			pr.Group(func(ar chi.Router) {
				ar.Use(roles.RequireAdmin())
				ar.Post("/admin/messaging/sweep", permissionHandler.Sweep)
			})
		})
	})
}
