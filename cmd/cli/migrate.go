package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/ccs/internal/infrastructure/persistence/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, log, err := openDB()
		if err != nil {
			return err
		}
		if err := postgres.AutoMigrate(db); err != nil {
			return err
		}
		log.Info(context.Background(), "schema migration complete")
		return nil
	},
}
