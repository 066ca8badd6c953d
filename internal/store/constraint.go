package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/safepark/platform-core/internal"
)

const pgUniqueViolation = "23505"

// ErrNotFound is returned by repositories when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// uniqueConstraint ties a named unique index to the conflict it reports.
// SQLite does not name the index in its error, only the constrained columns.
type uniqueConstraint struct {
	name    string
	columns string
	err     *internal.AppError
}

var uniqueConstraints = []uniqueConstraint{
	{name: "ux_tenants_code", columns: "tenants.code", err: internal.ErrTenantCodeExists},
	{name: "ux_branches_tenant_code", columns: "branches.tenant_id, branches.code", err: internal.ErrBranchCodeExists},
	{name: "ux_users_tenant_email", columns: "users.tenant_id, users.email", err: internal.ErrEmailAlreadyExists},
}

// TranslateError maps unique-constraint violations onto their conflict codes
// and returns every other error unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		for _, c := range uniqueConstraints {
			if c.name == pgErr.ConstraintName {
				return c.err.WithCause(err)
			}
		}
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		cols := strings.TrimPrefix(sqliteErr.Error(), "UNIQUE constraint failed: ")
		for _, c := range uniqueConstraints {
			if c.columns == cols {
				return c.err.WithCause(err)
			}
		}
	}

	return err
}

// IsUniqueViolation reports whether err is any unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
