package auth

import (
	"context"
	"net/http"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/transport"
	"github.com/safepark/platform-core/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*LoginResponse, error)
	Authenticate(ctx context.Context, token string) (*Identity, error)
	Me(id *Identity) *MeResponse
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	resp, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrMissingBearerToken)
		return
	}
	h.WriteJSON(w, http.StatusOK, h.Service.Me(id))
}

// AuthMiddleware resolves the bearer token and stores the principal and
// identity on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteAppError(w, r, internal.ErrMissingBearerToken)
			return
		}

		id, err := h.Service.Authenticate(r.Context(), token)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		ctx := authz.ContextWithPrincipal(r.Context(), id.Principal)
		ctx = ContextWithIdentity(ctx, id)
		ctx = logger.With(ctx, "user_id", id.Principal.UserID, "tenant_id", id.Principal.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
