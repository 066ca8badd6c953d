package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/safepark/platform-core/internal/install"
	installPostgres "github.com/safepark/platform-core/internal/install/postgres"
	"github.com/safepark/platform-core/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the platform install state",
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

		row, err := installPostgres.NewRepository(db.Gorm).State(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(install.StateFromDataModel(row))
	},
}
