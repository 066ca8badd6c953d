package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safepark/platform-core/internal/authz"
	"github.com/safepark/platform-core/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the role catalog and install-state row",
	Long:  `Insert the fixed role catalog and the singleton install-state row. Existing rows are kept, so the command is safe to repeat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		if err := store.Seed(ctx, db.SQL, authz.CatalogRows()); err != nil {
			return err
		}

		keys, err := store.SeededRoleKeys(ctx, db.SQL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "role catalog: %v\n", keys)
		return nil
	},
}
