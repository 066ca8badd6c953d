package provisioning

import (
	"context"
	"net/http"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/transport"
	"github.com/safepark/platform-core/pkg/logger"
)

type ServiceAPI interface {
	CreateTenant(ctx context.Context, actor authz.Principal, req *ProvisionRequest) (*Result, error)
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

// CreateTenant handles POST /tenants.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.ErrMissingBearerToken)
		return
	}

	var req ProvisionRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	result, err := h.Service.CreateTenant(r.Context(), actor, &req)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}
