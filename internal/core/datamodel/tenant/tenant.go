package tenant

import (
	"time"

	"gorm.io/datatypes"
)

type Tenant struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Code      string    `gorm:"column:code;uniqueIndex:ux_tenants_code;not null"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Tenant) TableName() string {
	return "tenants"
}

type Branch struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)"`
	TenantID  string            `gorm:"column:tenant_id;type:varchar(36);not null;uniqueIndex:ux_branches_tenant_code,priority:1"`
	Code      string            `gorm:"column:code;not null;uniqueIndex:ux_branches_tenant_code,priority:2"`
	Name      string            `gorm:"column:name;not null"`
	Profile   datatypes.JSONMap `gorm:"column:profile;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;not null"`
	UpdatedAt time.Time         `gorm:"column:updated_at;not null"`
}

func (Branch) TableName() string {
	return "branches"
}
