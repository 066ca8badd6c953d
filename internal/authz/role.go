package authz

import (
	"encoding/json"
	"fmt"
	"math/bits"

	"github.com/safepark/platform-core/internal/store"
)

// Role is one entry of the fixed role catalog.
type Role uint8

const (
	RolePlatformAdmin Role = iota + 1
	RoleSuperAdmin
	RoleBranchManager
	RoleOperator
)

// Catalog lists every role in canonical order.
var Catalog = []Role{RolePlatformAdmin, RoleSuperAdmin, RoleBranchManager, RoleOperator}

func (r Role) String() string {
	switch r {
	case RolePlatformAdmin:
		return "platform_admin"
	case RoleSuperAdmin:
		return "super_admin"
	case RoleBranchManager:
		return "branch_manager"
	case RoleOperator:
		return "operator"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Description is the human label stored alongside the catalog row.
func (r Role) Description() string {
	switch r {
	case RolePlatformAdmin:
		return "Platform administrator"
	case RoleSuperAdmin:
		return "Tenant super administrator"
	case RoleBranchManager:
		return "Branch manager"
	case RoleOperator:
		return "Operator"
	}
	return ""
}

func (r Role) valid() bool {
	return r >= RolePlatformAdmin && r <= RoleOperator
}

func ParseRole(key string) (Role, bool) {
	for _, r := range Catalog {
		if r.String() == key {
			return r, true
		}
	}
	return 0, false
}

// RoleSet is an order-independent set of roles.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.Add(r)
	}
	return s
}

func (s RoleSet) Add(r Role) RoleSet {
	if !r.valid() {
		return s
	}
	return s | 1<<(r-1)
}

func (s RoleSet) Has(r Role) bool {
	return r.valid() && s&(1<<(r-1)) != 0
}

// HasAny reports whether s and other share at least one role.
func (s RoleSet) HasAny(other RoleSet) bool {
	return s&other != 0
}

func (s RoleSet) Len() int {
	return bits.OnesCount8(uint8(s))
}

func (s RoleSet) Empty() bool {
	return s == 0
}

// Roles returns the members in catalog order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, s.Len())
	for _, r := range Catalog {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) Keys() []string {
	roles := s.Roles()
	keys := make([]string, len(roles))
	for i, r := range roles {
		keys[i] = r.String()
	}
	return keys
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Keys())
}

// ParseRoleSet fails on the first unknown key.
func ParseRoleSet(keys []string) (RoleSet, error) {
	var s RoleSet
	for _, k := range keys {
		r, ok := ParseRole(k)
		if !ok {
			return 0, fmt.Errorf("unknown role %q", k)
		}
		s = s.Add(r)
	}
	return s, nil
}

// CatalogRows converts the catalog into the rows the role table is seeded with.
func CatalogRows() []store.CatalogRole {
	rows := make([]store.CatalogRole, 0, len(Catalog))
	for _, r := range Catalog {
		rows = append(rows, store.CatalogRole{Key: r.String(), Description: r.Description()})
	}
	return rows
}
