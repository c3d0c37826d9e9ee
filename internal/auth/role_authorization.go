package auth

import (
	"log/slog"
	"net/http"

	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
)

// RoleAuthorization gates routes on the caller's account role.
type RoleAuthorization struct {
	logger *slog.Logger
}

func NewRoleAuthorization(logger *slog.Logger) *RoleAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleAuthorization{logger: logger}
}

func (ra *RoleAuthorization) RequireRole(roles ...coreuser.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				ra.logger.Warn("authorization check failed: user not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			ra.logger.WarnContext(r.Context(), "access denied: role not allowed",
				"user_id", user.ID,
				"role", user.Role,
				"allowed_roles", roles)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		})
	}
}

func (ra *RoleAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRole(coreuser.RoleAdmin)
}
