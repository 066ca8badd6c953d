package cmd

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/safepark/platform-core/db/migrations"
	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/internal/store"
	"github.com/safepark/platform-core/pkg/logger"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		Long:  `Apply the goose migrations embedded from db/migrations. SQLite stores are migrated from the gorm models instead.`,
	}
	migrateRollback bool
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	logger.Init(cfg.App.Env, logger.WithLevel(cfg.Observability.Logging.Level), logger.WithFormat(cfg.Observability.Logging.Format))
	lg := logger.L()

	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.Driver == internal.DriverSQLite {
		if migrateRollback {
			return fmt.Errorf("rollback is not supported for sqlite stores")
		}
		lg.Info("auto-migrating sqlite schema", "source", cfg.Database.Source)
		return store.AutoMigrate(db.Gorm)
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	command := "up"
	if migrateRollback {
		command = "down"
	}
	lg.Info("running migrations", "command", command)
	if err := goose.RunContext(ctx, command, db.SQL.DB, "."); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
