package provisioning

import (
	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/core/tenancy"
)

// RolePolicy decides which roles the created admin user receives.
type RolePolicy int

const (
	// PolicyInstall grants the fixed install role set and ignores requested roles.
	PolicyInstall RolePolicy = iota
	// PolicyTenantCreation grants a requested subset of the assignable roles.
	PolicyTenantCreation
)

var (
	installRoles    = authz.NewRoleSet(authz.RoleSuperAdmin, authz.RolePlatformAdmin)
	assignableRoles = authz.NewRoleSet(authz.RoleSuperAdmin, authz.RoleBranchManager, authz.RoleOperator)
	defaultRoles    = authz.NewRoleSet(authz.RoleSuperAdmin)
)

type TenantInput struct {
	Code string
	Name string
}

type BranchInput struct {
	Code    string
	Name    string
	Profile map[string]interface{}
}

type AdminInput struct {
	FullName string
	Email    string
	Password string
	Roles    authz.RoleSet
}

// Payload is a validated, normalised provisioning request.
type Payload struct {
	Tenant        TenantInput
	Branch        BranchInput
	ExtraBranches []BranchInput
	AdminUser     AdminInput
}

// BranchCodes returns the primary code followed by the extras in input order.
func (p *Payload) BranchCodes() []string {
	codes := make([]string, 0, 1+len(p.ExtraBranches))
	codes = append(codes, p.Branch.Code)
	for _, b := range p.ExtraBranches {
		codes = append(codes, b.Code)
	}
	return codes
}

// AuditContext describes who triggered a provisioning run.
type AuditContext struct {
	Action string
	Actor  *authz.Principal
}

// Result is what a committed provisioning run created.
type Result struct {
	Tenant    *tenancy.Tenant       `json:"tenant"`
	Branch    *tenancy.Branch       `json:"branch"`
	Branches  []*tenancy.Branch     `json:"branches"`
	AdminUser tenancy.UserWithRoles `json:"adminUser"`
}
