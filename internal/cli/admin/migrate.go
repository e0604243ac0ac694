package admin

import (
	"fmt"

	"github.com/cloo-solutions/ragindex/internal/config"
	"github.com/cloo-solutions/ragindex/internal/database"
	"github.com/cloo-solutions/ragindex/internal/logging"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the Postgres schema",
		Long:      "Apply (up, the default) or roll back (down) the chunk record schema in DATABASE_URL.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.MigrateUp), string(database.MigrateDown)},
		RunE:      runMigrate,
	}

	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := database.MigrateUp
	if len(args) == 1 {
		direction = database.Direction(args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasPostgres() {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	logger := logging.Must(cfg.LogLevel, cfg.Debug)
	defer func() { _ = logger.Sync() }()

	source, _ := cmd.Flags().GetString("migrations")
	if err := database.Migrate(cfg.DatabaseURL, source, direction, logger); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s complete.\n", direction)
	return nil
}
