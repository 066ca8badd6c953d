package branch

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/core/tenancy"
	"github.com/safepark/platform-core/internal/transport"
	"github.com/safepark/platform-core/pkg/logger"
)

type ServiceAPI interface {
	GetProfile(ctx context.Context, p authz.Principal, branchID string) (*tenancy.Branch, error)
	UpdateProfile(ctx context.Context, p authz.Principal, branchID string, req *UpdateProfileRequest) (*tenancy.Branch, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     service,
	}
}

// GetProfile handles GET /branch-profile/{branchId}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrMissingBearerToken)
		return
	}

	b, err := h.Service.GetProfile(r.Context(), p, chi.URLParam(r, "branchId"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, Response{Branch: b})
}

// UpdateProfile handles PUT /branch-profile/{branchId}.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrMissingBearerToken)
		return
	}

	var req UpdateProfileRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	b, err := h.Service.UpdateProfile(r.Context(), p, chi.URLParam(r, "branchId"), &req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, Response{Branch: b})
}
