package authz

import (
	"log/slog"
	"net/http"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/transport"
)

type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// RequireRoles admits requests whose principal holds any of roles. It must
// run after the bearer authentication middleware.
func (ra *RBACAuthorization) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				ra.Logger.WarnContext(r.Context(), "authorization check failed: principal not found in context")
				ra.WriteAppError(w, r, internal.ErrMissingBearerToken)
				return
			}

			if err := RequireRole(p, roles...); err != nil {
				ra.Logger.WarnContext(r.Context(), "access denied: insufficient role",
					"user_id", p.UserID,
					"required_roles", NewRoleSet(roles...).Keys(),
					"user_roles", p.Roles.Keys())
				ra.WriteAppError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequirePlatformAdmin() func(http.Handler) http.Handler {
	return ra.RequireRoles(RolePlatformAdmin)
}
