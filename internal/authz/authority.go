package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/safepark/platform-core/internal"
)

// Principal is the authenticated caller resolved from a session token.
type Principal struct {
	UserID       string
	TenantID     string
	HomeBranchID string
	Roles        RoleSet
}

// BranchRef is the part of a branch that scoping decisions need.
type BranchRef struct {
	ID       string
	TenantID string
}

type branchScope int

const (
	scopeNone branchScope = iota
	scopeHomeBranch
	scopeTenant
)

// branchScopeOf is the branch-profile reach a single role grants.
func branchScopeOf(r Role) branchScope {
	switch r {
	case RoleSuperAdmin:
		return scopeTenant
	case RoleBranchManager:
		return scopeHomeBranch
	case RolePlatformAdmin, RoleOperator:
		return scopeNone
	}
	return scopeNone
}

// RequireRole admits the principal when it holds at least one allowed role.
func RequireRole(p Principal, allowed ...Role) error {
	want := NewRoleSet(allowed...)
	if p.Roles.HasAny(want) {
		return nil
	}
	return internal.NewInsufficientRoleError(want.Keys())
}

// ScopeBranchAccess decides whether p may read or write branch b. Tenant
// isolation is checked before any role.
func ScopeBranchAccess(p Principal, b BranchRef) error {
	if p.TenantID != b.TenantID {
		return internal.ErrCrossTenant
	}

	widest := scopeNone
	for _, r := range p.Roles.Roles() {
		if s := branchScopeOf(r); s > widest {
			widest = s
		}
	}

	switch widest {
	case scopeTenant:
		return nil
	case scopeHomeBranch:
		if p.HomeBranchID == b.ID {
			return nil
		}
		return internal.ErrBranchScope
	default:
		return internal.NewInsufficientRoleError(NewRoleSet(RoleSuperAdmin, RoleBranchManager).Keys())
	}
}

// RoleRepository loads the role keys granted to a user.
type RoleRepository interface {
	RoleKeysForUser(ctx context.Context, userID string) ([]string, error)
}

type Authority struct {
	repo   RoleRepository
	logger *slog.Logger
}

func NewAuthority(repo RoleRepository, logger *slog.Logger) *Authority {
	return &Authority{repo: repo, logger: logger}
}

// RolesOf returns the roles currently granted to userID. A stored key outside
// the catalog means the catalog and the grants disagree.
func (a *Authority) RolesOf(ctx context.Context, userID string) (RoleSet, error) {
	keys, err := a.repo.RoleKeysForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load roles for user %s: %w", userID, err)
	}
	set, err := ParseRoleSet(keys)
	if err != nil {
		a.logger.ErrorContext(ctx, "role grant outside catalog", "user_id", userID, "error", err)
		return 0, internal.NewInternalError("role catalog mismatch", err)
	}
	return set, nil
}

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
