// Package cli implements the ccs-admin provisioning commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/ccs/pkg/constants"
	"github.com/turtacn/ccs/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ccs-admin",
	Short: "Provisioning and maintenance tool for the companion chat service",
	Long: `ccs-admin manages tenants, companions, and the database schema.
The chat pipeline itself never writes tenant configuration; this tool is
the single place where it changes.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(companionCmd)
}

// openDB loads config and connects. Commands run against the same database
// settings as the server, env overrides included.
func openDB() (*gorm.DB, logger.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Provisioning does not need a generation credential; tolerate
		// a validation failure that is only about it.
		cfg, err = config.LoadConfigLenient()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
	}

	// A one-shot admin process; the plain JSON logger is enough, no zap
	// or tracing bootstrap.
	log := logger.NewLogger(constants.ParseLogLevel(cfg.Log.Level), os.Stderr)
	db, err := postgres.NewConnection(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}
