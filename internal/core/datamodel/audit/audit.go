package audit

import (
	"time"

	"gorm.io/datatypes"
)

type Log struct {
	ID         string            `gorm:"primaryKey;type:varchar(36)"`
	TenantID   *string           `gorm:"column:tenant_id;type:varchar(36);index"`
	BranchID   *string           `gorm:"column:branch_id;type:varchar(36)"`
	UserID     *string           `gorm:"column:user_id;type:varchar(36)"`
	Action     string            `gorm:"column:action;not null;index"`
	EntityType *string           `gorm:"column:entity_type"`
	EntityID   *string           `gorm:"column:entity_id"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null"`
}

func (Log) TableName() string {
	return "audit_logs"
}
