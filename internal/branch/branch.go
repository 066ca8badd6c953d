package branch

import (
	"context"
	"encoding/json"

	"github.com/safepark/platform-core/internal/audit"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	"github.com/safepark/platform-core/internal/core/tenancy"
)

// Repository reads branches; FindByID returns store.ErrNotFound for unknown ids.
type Repository interface {
	FindByID(ctx context.Context, id string) (*tenantDatamodel.Branch, error)
	WithinTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is bound to one transaction. FindByIDForUpdate holds the row
// until commit.
type TxRepository interface {
	audit.Emitter
	FindByIDForUpdate(ctx context.Context, id string) (*tenantDatamodel.Branch, error)
	Update(ctx context.Context, b *tenantDatamodel.Branch) error
}

// UpdateProfileRequest keeps both fields raw so absent, null and mistyped
// values can be told apart.
type UpdateProfileRequest struct {
	Name    json.RawMessage `json:"name"`
	Profile json.RawMessage `json:"profile"`
}

type Response struct {
	Branch *tenancy.Branch `json:"branch"`
}
