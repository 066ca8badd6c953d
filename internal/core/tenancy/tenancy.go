// Package tenancy holds the domain views of tenants, branches and users shared
// by the provisioning, auth and branch packages.
package tenancy

import (
	"time"

	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
)

type Tenant struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Branch struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenantId"`
	Code      string                 `json:"code"`
	Name      string                 `json:"name"`
	Profile   map[string]interface{} `json:"profile"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// User is the public view; the password credential never leaves the store layer.
type User struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	BranchID    string     `json:"branchId"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UserWithRoles is a user plus its granted role keys.
type UserWithRoles struct {
	User
	Roles []string `json:"roles"`
}

func TenantFromDataModel(t *tenantDatamodel.Tenant) *Tenant {
	if t == nil {
		return nil
	}
	return &Tenant{
		ID:        t.ID,
		Code:      t.Code,
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func BranchFromDataModel(b *tenantDatamodel.Branch) *Branch {
	if b == nil {
		return nil
	}
	profile := map[string]interface{}(b.Profile)
	if profile == nil {
		profile = map[string]interface{}{}
	}
	return &Branch{
		ID:        b.ID,
		TenantID:  b.TenantID,
		Code:      b.Code,
		Name:      b.Name,
		Profile:   profile,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func UserFromDataModel(u *userDatamodel.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:          u.ID,
		TenantID:    u.TenantID,
		BranchID:    u.BranchID,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func WithRoles(u *User, roles []string) UserWithRoles {
	if roles == nil {
		roles = []string{}
	}
	return UserWithRoles{User: *u, Roles: roles}
}
