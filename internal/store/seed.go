package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CatalogRole is one row of the fixed role catalog.
type CatalogRole struct {
	Key         string
	Description string
}

// Seed idempotently inserts the role catalog and the singleton install-state
// row. Existing rows are left untouched.
func Seed(ctx context.Context, db *sqlx.DB, roles []CatalogRole) error {
	now := time.Now().UTC()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insertRole := db.Rebind(`INSERT INTO roles (id, "key", description, created_at) VALUES (?, ?, ?, ?) ON CONFLICT ("key") DO NOTHING`)
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx, insertRole, uuid.NewString(), r.Key, r.Description, now); err != nil {
			return fmt.Errorf("seed role %s: %w", r.Key, err)
		}
	}

	insertState := db.Rebind(`INSERT INTO platform_install_state (id, is_installed, updated_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	if _, err := tx.ExecContext(ctx, insertState, 1, false, now); err != nil {
		return fmt.Errorf("seed install state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

// SeededRoleKeys lists the role keys currently in the catalog.
func SeededRoleKeys(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var keys []string
	if err := db.SelectContext(ctx, &keys, `SELECT "key" FROM roles ORDER BY "key"`); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return keys, nil
}
