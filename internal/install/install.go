// Package install drives the one-way NOT_INSTALLED to INSTALLED transition
// that creates the first tenant and its platform administrator.
package install

import (
	"context"
	"time"

	platformDatamodel "github.com/safepark/platform-core/internal/core/datamodel/platform"
	"github.com/safepark/platform-core/internal/provisioning"
)

// HeaderInstallKey carries the install key; the body field installKey is the fallback.
const HeaderInstallKey = "X-Install-Key"

// State is the persisted install record.
type State struct {
	Installed         bool       `json:"installed"`
	InstalledAt       *time.Time `json:"installedAt,omitempty"`
	InstalledTenantID string     `json:"installedTenantId,omitempty"`
	InstalledBranchID string     `json:"installedBranchId,omitempty"`
	InstalledUserID   string     `json:"installedUserId,omitempty"`
}

// Status is the public view returned by GET /setup/status.
type Status struct {
	Installed bool `json:"installed"`
}

type InstallRequest struct {
	provisioning.ProvisionRequest
	InstallKey string `json:"installKey"`
}

type Result struct {
	Installed bool `json:"installed"`
	*provisioning.Result
}

func StateFromDataModel(row *platformDatamodel.InstallState) *State {
	if row == nil {
		return &State{}
	}
	return &State{
		Installed:         row.IsInstalled,
		InstalledAt:       row.InstalledAt,
		InstalledTenantID: deref(row.InstalledTenantID),
		InstalledBranchID: deref(row.InstalledBranchID),
		InstalledUserID:   deref(row.InstalledUserID),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Repository is the transactional surface of an install attempt.
type Repository interface {
	provisioning.Repository
	// LockState returns the singleton row, creating it when absent, and holds
	// it exclusively until the transaction ends.
	LockState(ctx context.Context) (*platformDatamodel.InstallState, error)
	MarkInstalled(ctx context.Context, state *platformDatamodel.InstallState) error
}

type Store interface {
	State(ctx context.Context) (*platformDatamodel.InstallState, error)
	WithinInstallTx(ctx context.Context, fn func(repo Repository) error) error
}
