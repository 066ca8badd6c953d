package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safepark/platform-core/internal/audit"
	auditPostgres "github.com/safepark/platform-core/internal/audit/postgres"
	"github.com/safepark/platform-core/internal/branch"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	"github.com/safepark/platform-core/internal/store"
)

type BranchRepository struct {
	audit.Emitter
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) *BranchRepository {
	return &BranchRepository{Emitter: auditPostgres.NewEmitter(db), db: db}
}

func (r *BranchRepository) FindByID(ctx context.Context, id string) (*tenantDatamodel.Branch, error) {
	var b tenantDatamodel.Branch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindByIDForUpdate takes a row lock. SQLite ignores the clause and relies on
// its single writer.
func (r *BranchRepository) FindByIDForUpdate(ctx context.Context, id string) (*tenantDatamodel.Branch, error) {
	var b tenantDatamodel.Branch
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BranchRepository) WithinTx(ctx context.Context, fn func(tx branch.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewBranchRepository(tx))
	})
}

// Update writes name, profile and updated_at only.
func (r *BranchRepository) Update(ctx context.Context, b *tenantDatamodel.Branch) error {
	return r.db.WithContext(ctx).Model(&tenantDatamodel.Branch{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"name":       b.Name,
			"profile":    b.Profile,
			"updated_at": b.UpdatedAt,
		}).Error
}
