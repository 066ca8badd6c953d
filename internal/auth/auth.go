package auth

import (
	"context"
	"time"

	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/authz"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
	"github.com/safepark/platform-core/internal/core/tenancy"
	"github.com/safepark/platform-core/internal/session"
)

const TokenTypeBearer = "Bearer"

// Lookups return store.ErrNotFound when nothing matches.
type Repository interface {
	audit.Emitter
	FindTenantByCode(ctx context.Context, code string) (*tenantDatamodel.Tenant, error)
	FindTenantByID(ctx context.Context, id string) (*tenantDatamodel.Tenant, error)
	FindBranchByID(ctx context.Context, id string) (*tenantDatamodel.Branch, error)
	FindUserByEmail(ctx context.Context, tenantID, email string) (*userDatamodel.User, error)
	FindUserByID(ctx context.Context, id string) (*userDatamodel.User, error)
	WithinTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is the write surface of a successful login.
type TxRepository interface {
	audit.Emitter
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
	Verify(token string) (*session.Claims, error)
}

type PasswordVerifier interface {
	Verify(password, credential string) bool
}

type RoleResolver interface {
	RolesOf(ctx context.Context, userID string) (authz.RoleSet, error)
}

// Identity is everything resolved from a valid bearer token.
type Identity struct {
	Principal authz.Principal
	User      *tenancy.User
	Tenant    *tenancy.Tenant
	Branch    *tenancy.Branch
}

type LoginResponse struct {
	AccessToken string                `json:"accessToken"`
	TokenType   string                `json:"tokenType"`
	ExpiresAt   time.Time             `json:"expiresAt"`
	User        tenancy.UserWithRoles `json:"user"`
}

type MeResponse struct {
	User   tenancy.UserWithRoles `json:"user"`
	Tenant *tenancy.Tenant       `json:"tenant"`
	Branch *tenancy.Branch       `json:"branch"`
}

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
