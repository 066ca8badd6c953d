package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/safepark/platform-core/internal/audit"
	auditPostgres "github.com/safepark/platform-core/internal/audit/postgres"
	"github.com/safepark/platform-core/internal/auth"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
	"github.com/safepark/platform-core/internal/store"
)

type Repository struct {
	audit.Emitter
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Emitter: auditPostgres.NewEmitter(db),
		db:      db,
	}
}

func (r *Repository) FindTenantByCode(ctx context.Context, code string) (*tenantDatamodel.Tenant, error) {
	var t tenantDatamodel.Tenant
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *Repository) FindTenantByID(ctx context.Context, id string) (*tenantDatamodel.Tenant, error) {
	var t tenantDatamodel.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *Repository) FindBranchByID(ctx context.Context, id string) (*tenantDatamodel.Branch, error) {
	var b tenantDatamodel.Branch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *Repository) FindUserByEmail(ctx context.Context, tenantID, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, email).
		First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *Repository) FindUserByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *Repository) WithinTx(ctx context.Context, fn func(tx auth.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *Repository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": at,
			"updated_at":    at,
		}).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
