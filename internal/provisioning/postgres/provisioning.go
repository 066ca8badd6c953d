package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/safepark/platform-core/internal/audit"
	auditPostgres "github.com/safepark/platform-core/internal/audit/postgres"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
	"github.com/safepark/platform-core/internal/provisioning"
)

// Repository implements provisioning.Repository with GORM. When built by
// WithinTx every call, audit included, runs on the same transaction.
type Repository struct {
	audit.Emitter
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Emitter: auditPostgres.NewEmitter(db), db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) WithinTx(ctx context.Context, fn func(repo provisioning.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *Repository) TenantCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&tenantDatamodel.Tenant{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateTenant(ctx context.Context, t *tenantDatamodel.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repository) CreateBranch(ctx context.Context, b *tenantDatamodel.Branch) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *Repository) EmailExists(ctx context.Context, tenantID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("tenant_id = ? AND email = ?", tenantID, email).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateUser(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// RoleIDs maps catalog keys to role ids. Keys without a catalog row are absent.
func (r *Repository) RoleIDs(ctx context.Context, keys []string) (map[string]string, error) {
	ids := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return ids, nil
	}

	var roles []userDatamodel.Role
	if err := r.db.WithContext(ctx).Where(`"key" IN ?`, keys).Find(&roles).Error; err != nil {
		return nil, err
	}
	for _, role := range roles {
		ids[role.Key] = role.ID
	}
	return ids, nil
}

func (r *Repository) GrantRole(ctx context.Context, userID, roleID string) error {
	return r.db.WithContext(ctx).Create(&userDatamodel.UserRole{
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: time.Now().UTC(),
	}).Error
}
