package user

import "time"

type User struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)"`
	TenantID           string     `gorm:"column:tenant_id;type:varchar(36);not null;uniqueIndex:ux_users_tenant_email,priority:1"`
	BranchID           string     `gorm:"column:branch_id;type:varchar(36);not null"`
	Email              string     `gorm:"column:email;not null;uniqueIndex:ux_users_tenant_email,priority:2"`
	FullName           string     `gorm:"column:full_name;not null"`
	PasswordCredential string     `gorm:"column:password_credential;not null"`
	IsActive           bool       `gorm:"column:is_active;not null"`
	LastLoginAt        *time.Time `gorm:"column:last_login_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null"`
}

func (User) TableName() string {
	return "users"
}

type Role struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Key         string    `gorm:"column:key;uniqueIndex:ux_roles_key;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (Role) TableName() string {
	return "roles"
}

type UserRole struct {
	UserID    string    `gorm:"primaryKey;column:user_id;type:varchar(36)"`
	RoleID    string    `gorm:"primaryKey;column:role_id;type:varchar(36)"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
