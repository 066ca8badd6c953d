package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/safepark/platform-core/internal/audit"
	auditDatamodel "github.com/safepark/platform-core/internal/core/datamodel/audit"
)

type Emitter struct {
	db *gorm.DB
}

// NewEmitter binds the emitter to db, which may be a transaction handle.
func NewEmitter(db *gorm.DB) audit.Emitter {
	return &Emitter{db: db}
}

func (e *Emitter) Record(ctx context.Context, entry audit.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := &auditDatamodel.Log{
		ID:         uuid.NewString(),
		TenantID:   optional(entry.TenantID),
		BranchID:   optional(entry.BranchID),
		UserID:     optional(entry.UserID),
		Action:     entry.Action,
		EntityType: optional(entry.EntityType),
		EntityID:   optional(entry.EntityID),
		Metadata:   datatypes.JSONMap(audit.NormalizeMetadata(entry.Metadata)),
		CreatedAt:  createdAt,
	}

	if err := e.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("record audit %s: %w", entry.Action, err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
