package platform

import "time"

// SingletonID is the primary key of the only install-state row.
const SingletonID = 1

type InstallState struct {
	ID                int        `gorm:"primaryKey;autoIncrement:false"`
	IsInstalled       bool       `gorm:"column:is_installed;not null"`
	InstalledAt       *time.Time `gorm:"column:installed_at"`
	InstalledTenantID *string    `gorm:"column:installed_tenant_id;type:varchar(36)"`
	InstalledBranchID *string    `gorm:"column:installed_branch_id;type:varchar(36)"`
	InstalledUserID   *string    `gorm:"column:installed_user_id;type:varchar(36)"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;not null"`
}

func (InstallState) TableName() string {
	return "platform_install_state"
}
