package provisioning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
	"github.com/safepark/platform-core/internal/core/tenancy"
	"github.com/safepark/platform-core/internal/store"
)

// Repository is the transactional write surface provisioning needs. An
// implementation handed out by TxRunner is bound to one open transaction.
type Repository interface {
	audit.Emitter
	TenantCodeExists(ctx context.Context, code string) (bool, error)
	CreateTenant(ctx context.Context, t *tenantDatamodel.Tenant) error
	CreateBranch(ctx context.Context, b *tenantDatamodel.Branch) error
	EmailExists(ctx context.Context, tenantID, email string) (bool, error)
	CreateUser(ctx context.Context, u *userDatamodel.User) error
	RoleIDs(ctx context.Context, keys []string) (map[string]string, error)
	GrantRole(ctx context.Context, userID, roleID string) error
}

// TxRunner runs fn inside one transaction, committing when fn returns nil
// and rolling back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Provisioner performs the multi-row tenant creation. It never opens a
// transaction itself; callers pass a repository bound to one.
type Provisioner struct {
	hasher PasswordHasher
	clock  clock.Clock
	logger *slog.Logger
}

func NewProvisioner(hasher PasswordHasher, clk clock.Clock, logger *slog.Logger) *Provisioner {
	if clk == nil {
		clk = clock.New()
	}
	return &Provisioner{hasher: hasher, clock: clk, logger: logger}
}

// Provision writes the tenant, its branches, the admin user, the role grants
// and one audit entry. Any error leaves the enclosing transaction to roll back.
func (p *Provisioner) Provision(ctx context.Context, repo Repository, payload *Payload, ac AuditContext) (*Result, error) {
	exists, err := repo.TenantCodeExists(ctx, payload.Tenant.Code)
	if err != nil {
		return nil, fmt.Errorf("check tenant code: %w", err)
	}
	if exists {
		return nil, internal.ErrTenantCodeExists
	}

	now := p.clock.Now().UTC()

	tenantRow := &tenantDatamodel.Tenant{
		ID:        uuid.NewString(),
		Code:      payload.Tenant.Code,
		Name:      payload.Tenant.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateTenant(ctx, tenantRow); err != nil {
		return nil, store.TranslateError(err)
	}

	inputs := append([]BranchInput{payload.Branch}, payload.ExtraBranches...)
	branchRows := make([]*tenantDatamodel.Branch, 0, len(inputs))
	for _, in := range inputs {
		row := &tenantDatamodel.Branch{
			ID:        uuid.NewString(),
			TenantID:  tenantRow.ID,
			Code:      in.Code,
			Name:      in.Name,
			Profile:   datatypes.JSONMap(in.Profile),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if row.Profile == nil {
			row.Profile = datatypes.JSONMap{}
		}
		if err := repo.CreateBranch(ctx, row); err != nil {
			return nil, store.TranslateError(err)
		}
		branchRows = append(branchRows, row)
	}
	primary := branchRows[0]

	taken, err := repo.EmailExists(ctx, tenantRow.ID, payload.AdminUser.Email)
	if err != nil {
		return nil, fmt.Errorf("check admin email: %w", err)
	}
	if taken {
		return nil, internal.ErrEmailAlreadyExists
	}

	credential, err := p.hasher.Hash(payload.AdminUser.Password)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	userRow := &userDatamodel.User{
		ID:                 uuid.NewString(),
		TenantID:           tenantRow.ID,
		BranchID:           primary.ID,
		Email:              payload.AdminUser.Email,
		FullName:           payload.AdminUser.FullName,
		PasswordCredential: credential,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := repo.CreateUser(ctx, userRow); err != nil {
		return nil, store.TranslateError(err)
	}

	roleKeys := payload.AdminUser.Roles.Keys()
	roleIDs, err := repo.RoleIDs(ctx, roleKeys)
	if err != nil {
		return nil, fmt.Errorf("load role ids: %w", err)
	}
	for _, key := range roleKeys {
		id, ok := roleIDs[key]
		if !ok {
			p.logger.ErrorContext(ctx, "role missing from catalog", "role", key)
			return nil, internal.NewRoleNotSeededError(key)
		}
		if err := repo.GrantRole(ctx, userRow.ID, id); err != nil {
			return nil, fmt.Errorf("grant role %s: %w", key, err)
		}
	}

	entry := audit.Entry{
		TenantID:   tenantRow.ID,
		BranchID:   primary.ID,
		UserID:     userRow.ID,
		Action:     ac.Action,
		EntityType: audit.EntityTenant,
		EntityID:   tenantRow.ID,
		Metadata:   auditMetadata(payload, ac),
		CreatedAt:  now,
	}
	if ac.Actor != nil {
		entry.UserID = ac.Actor.UserID
	}
	if err := repo.Record(ctx, entry); err != nil {
		return nil, err
	}

	branches := make([]*tenancy.Branch, len(branchRows))
	for i, row := range branchRows {
		branches[i] = tenancy.BranchFromDataModel(row)
	}

	return &Result{
		Tenant:    tenancy.TenantFromDataModel(tenantRow),
		Branch:    branches[0],
		Branches:  branches,
		AdminUser: tenancy.WithRoles(tenancy.UserFromDataModel(userRow), roleKeys),
	}, nil
}

func auditMetadata(payload *Payload, ac AuditContext) map[string]interface{} {
	meta := map[string]interface{}{
		"tenantCode":  payload.Tenant.Code,
		"branchCodes": payload.BranchCodes(),
		"adminEmail":  payload.AdminUser.Email,
		"adminRoles":  payload.AdminUser.Roles.Keys(),
	}
	if ac.Actor == nil {
		meta["actor"] = "system"
		return meta
	}
	meta["actorUserId"] = ac.Actor.UserID
	meta["actorTenantId"] = ac.Actor.TenantID
	meta["actorRoles"] = ac.Actor.Roles.Keys()
	return meta
}
