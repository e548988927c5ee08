package main

import (
	"github.com/spf13/cobra"
	"github.com/stockflow/stockflow-backend/internal/inventory/migrations"
	"github.com/stockflow/stockflow-backend/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema migrations",
		Long:  `Applies all pending migrations, or rolls back the given number of steps with --down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if down > 0 {
				return database.MigrateDown(cfg.Database.MigrationURL(), migrations.FS, down, log)
			}
			return database.Migrate(cfg.Database.MigrationURL(), migrations.FS, log)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}
