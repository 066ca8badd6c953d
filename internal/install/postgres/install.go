package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	platformDatamodel "github.com/safepark/platform-core/internal/core/datamodel/platform"
	"github.com/safepark/platform-core/internal/install"
	provisioningPostgres "github.com/safepark/platform-core/internal/provisioning/postgres"
)

// Repository implements install.Store and, inside a transaction,
// install.Repository.
type Repository struct {
	*provisioningPostgres.Repository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Repository: provisioningPostgres.NewRepository(db)}
}

func (r *Repository) State(ctx context.Context) (*platformDatamodel.InstallState, error) {
	var row platformDatamodel.InstallState
	err := r.DB().WithContext(ctx).First(&row, platformDatamodel.SingletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &platformDatamodel.InstallState{ID: platformDatamodel.SingletonID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) WithinInstallTx(ctx context.Context, fn func(repo install.Repository) error) error {
	return r.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// LockState takes SELECT ... FOR UPDATE on the singleton row. SQLite has no
// row locks; there the single store connection serialises transactions.
func (r *Repository) LockState(ctx context.Context) (*platformDatamodel.InstallState, error) {
	db := r.DB().WithContext(ctx)

	seed := &platformDatamodel.InstallState{ID: platformDatamodel.SingletonID, UpdatedAt: time.Now().UTC()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, err
	}

	var row platformDatamodel.InstallState
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, platformDatamodel.SingletonID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) MarkInstalled(ctx context.Context, state *platformDatamodel.InstallState) error {
	return r.DB().WithContext(ctx).Save(state).Error
}
