package branch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"
	"gorm.io/datatypes"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/audit"
	"github.com/safepark/platform-core/internal/authz"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	"github.com/safepark/platform-core/internal/core/tenancy"
	"github.com/safepark/platform-core/internal/store"
)

type Service struct {
	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo Repository, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{repo: repo, clock: clk, logger: logger}
}

// GetProfile returns the branch when the principal's scope reaches it.
func (s *Service) GetProfile(ctx context.Context, p authz.Principal, branchID string) (*tenancy.Branch, error) {
	row, err := s.load(ctx, p, branchID)
	if err != nil {
		return nil, err
	}
	return tenancy.BranchFromDataModel(row), nil
}

// UpdateProfile renames the branch and shallow-merges profile keys. The row
// is locked for the read-merge-write so concurrent updates both land, and the
// update commits with its audit entry.
func (s *Service) UpdateProfile(ctx context.Context, p authz.Principal, branchID string, req *UpdateProfileRequest) (*tenancy.Branch, error) {
	var (
		row     *tenantDatamodel.Branch
		changed []string
	)
	err := s.repo.WithinTx(ctx, func(tx TxRepository) error {
		found, err := tx.FindByIDForUpdate(ctx, branchID)
		current, err := s.authorize(ctx, p, found, err)
		if err != nil {
			return err
		}

		name, renamed, err := parseName(req.Name, current.Name)
		if err != nil {
			return err
		}
		patch, err := parseProfile(req.Profile)
		if err != nil {
			return err
		}

		previousName := current.Name
		merged := make(datatypes.JSONMap, len(current.Profile)+len(patch))
		for k, v := range current.Profile {
			merged[k] = v
		}
		changed = make([]string, 0, len(patch))
		for k, v := range patch {
			merged[k] = v
			changed = append(changed, k)
		}
		sort.Strings(changed)

		current.Name = name
		current.Profile = merged
		current.UpdatedAt = s.clock.Now().UTC()

		metadata := map[string]interface{}{
			"actorRoles":  p.Roles.Keys(),
			"changedKeys": changed,
		}
		if renamed && name != previousName {
			metadata["previousName"] = previousName
			metadata["name"] = name
		}

		if err := tx.Update(ctx, current); err != nil {
			return fmt.Errorf("update branch: %w", err)
		}
		row = current
		return tx.Record(ctx, audit.Entry{
			TenantID:   current.TenantID,
			BranchID:   current.ID,
			UserID:     p.UserID,
			Action:     audit.ActionBranchProfileUpdated,
			EntityType: audit.EntityBranch,
			EntityID:   current.ID,
			Metadata:   metadata,
			CreatedAt:  current.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "branch profile updated", "branch_id", row.ID, "changed_keys", changed)
	return tenancy.BranchFromDataModel(row), nil
}

func (s *Service) load(ctx context.Context, p authz.Principal, branchID string) (*tenantDatamodel.Branch, error) {
	row, err := s.repo.FindByID(ctx, branchID)
	return s.authorize(ctx, p, row, err)
}

// authorize maps a lookup result to the branch errors and applies the
// principal's scope.
func (s *Service) authorize(ctx context.Context, p authz.Principal, row *tenantDatamodel.Branch, err error) (*tenantDatamodel.Branch, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, internal.ErrBranchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find branch: %w", err)
	}
	if err := authz.ScopeBranchAccess(p, authz.BranchRef{ID: row.ID, TenantID: row.TenantID}); err != nil {
		s.logger.WarnContext(ctx, "branch access denied", "branch_id", row.ID, "user_id", p.UserID, "error", err)
		return nil, err
	}
	return row, nil
}

// parseName returns current unless a name was supplied. An explicit null is
// an empty name.
func parseName(raw json.RawMessage, current string) (string, bool, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return current, false, nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil || strings.TrimSpace(name) == "" {
		return "", false, internal.NewValidationError("name cannot be empty when provided", internal.ErrCodeInvalidName)
	}
	return strings.TrimSpace(name), true, nil
}

func parseProfile(raw json.RawMessage) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var patch map[string]interface{}
	if err := json.Unmarshal(raw, &patch); err != nil || patch == nil {
		return nil, internal.NewValidationError("profile must be an object", internal.ErrCodeInvalidProfile)
	}
	return patch, nil
}
