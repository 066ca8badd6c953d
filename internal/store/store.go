// Package store opens the relational store and owns the pieces of schema
// knowledge shared by every repository.
package store

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/safepark/platform-core/internal"
	auditDatamodel "github.com/safepark/platform-core/internal/core/datamodel/audit"
	platformDatamodel "github.com/safepark/platform-core/internal/core/datamodel/platform"
	tenantDatamodel "github.com/safepark/platform-core/internal/core/datamodel/tenant"
	userDatamodel "github.com/safepark/platform-core/internal/core/datamodel/user"
)

const (
	sqlDriverPostgres = "pgx"
	sqlDriverSQLite   = "sqlite3"
)

// DB bundles the raw handle used for seeding and health checks with the gorm
// handle used by repositories. Both share one connection pool.
type DB struct {
	SQL    *sqlx.DB
	Gorm   *gorm.DB
	Driver string
}

// Open connects using cfg.Driver and verifies the connection.
func Open(cfg internal.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case internal.DriverPostgres:
		return openPostgres(cfg)
	case internal.DriverSQLite:
		return OpenSQLite(cfg.Source)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func openPostgres(cfg internal.DatabaseConfig) (*DB, error) {
	dbConn, err := sqlx.Connect(sqlDriverPostgres, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), gormConfig())
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to open gorm on postgres: %w", err)
	}

	return &DB{SQL: dbConn, Gorm: gdb, Driver: internal.DriverPostgres}, nil
}

// OpenSQLite opens a single-connection SQLite store. One connection keeps
// ":memory:" databases alive and serialises writers.
func OpenSQLite(source string) (*DB, error) {
	dbConn, err := sqlx.Connect(sqlDriverSQLite, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	dbConn.SetMaxOpenConns(1)
	dbConn.SetMaxIdleConns(1)
	dbConn.SetConnMaxLifetime(0)

	gdb, err := gorm.Open(&sqlite.Dialector{DriverName: sqlDriverSQLite, Conn: dbConn.DB}, gormConfig())
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to open gorm on sqlite: %w", err)
	}

	return &DB{SQL: dbConn, Gorm: gdb, Driver: internal.DriverSQLite}, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&tenantDatamodel.Tenant{},
		&tenantDatamodel.Branch{},
		&userDatamodel.User{},
		&userDatamodel.Role{},
		&userDatamodel.UserRole{},
		&platformDatamodel.InstallState{},
		&auditDatamodel.Log{},
	}
}

// AutoMigrate creates the schema from the gorm models. SQLite deployments and
// tests use it; Postgres uses the goose migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
