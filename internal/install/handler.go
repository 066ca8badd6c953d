package install

import (
	"context"
	"net/http"
	"strings"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/provisioning"
	"github.com/safepark/platform-core/internal/transport"
	"github.com/safepark/platform-core/pkg/logger"
)

type ServiceAPI interface {
	Status(ctx context.Context) (*Status, error)
	Install(ctx context.Context, presentedKey string, req *provisioning.ProvisionRequest) (*Result, error)
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

// Status handles GET /setup/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.Status(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, status)
}

// Install handles POST /setup/install.
func (h *Handler) Install(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(HeaderInstallKey))
	if key == "" {
		key = req.InstallKey
	}

	result, err := h.Service.Install(r.Context(), key, &req.ProvisionRequest)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

// Bootstrap answers the retired POST /setup/bootstrap.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	h.WriteAppError(w, r, internal.ErrBootstrapDeprecated.WithDetails(map[string]interface{}{
		"installEndpoint": "/api/v1/setup/install",
	}))
}
