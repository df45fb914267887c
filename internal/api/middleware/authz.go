package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/resreg/resreg/internal/api/response"
	"github.com/resreg/resreg/internal/role"
	"github.com/resreg/resreg/internal/user"
)

// RequireProjectRole returns middleware that rejects callers who do not hold
// the given role type on the project named by the {id} URL parameter.
// Super-tier accounts pass regardless of project roles.
func RequireProjectRole(roles role.Repository, roleType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			si := GetIdentity(r.Context())
			if si == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", requestID)
				return
			}
			if si.User == nil {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "No local account for this session", requestID)
				return
			}
			if si.User.Tier == user.TierSuper {
				next.ServeHTTP(w, r)
				return
			}

			projectID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				response.Err(w, http.StatusBadRequest, "INVALID_ID", "id must be a valid UUID", requestID)
				return
			}

			allowed, err := roles.UserHasRoleInProject(r.Context(), si.User.ID, projectID, roleType)
			if err != nil {
				slog.Error("project role check failed", "error", err, "projectId", projectID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authorization failed", requestID)
				return
			}
			if !allowed {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient project permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
