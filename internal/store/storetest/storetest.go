// Package storetest provides a seeded in-memory SQLite store for tests.
package storetest

import (
	"context"

	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/store"
)

// CatalogRoles returns the full role catalog as seed rows.
func CatalogRoles() []store.CatalogRole {
	return authz.CatalogRows()
}

// NewSQLite returns a migrated and seeded in-memory store.
func NewSQLite() (*store.DB, error) {
	db, err := store.OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(db.Gorm); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.Seed(context.Background(), db.SQL, CatalogRoles()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
