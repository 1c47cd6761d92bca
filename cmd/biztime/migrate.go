package main

import (
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/biztime/internal/platform/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|reset|status|version]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{db.MigrateUp, db.MigrateDown, db.MigrateReset, db.MigrateStatus, db.MigrateVersion},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		return db.Migrate(cmd.Context(), cfg.PGDSN, args[0], logger)
	},
}
