package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/storage/postgres"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
	withRiver      bool
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply or roll back schema migrations against DATABASE_URL.

Migrations are compiled into the binary; --path points at a directory of
.sql files instead. The River job queue tables are migrated alongside the
application schema unless --river=false.`,
	}
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "directory of migration files (default: embedded)")
	cmd.PersistentFlags().BoolVar(&withRiver, "river", true, "also migrate the River job queue tables")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, func(ctx context.Context, cfg config.Config) error {
				if err := postgres.MigrateUp(cfg.Database.URL, migrationsPath); err != nil {
					return err
				}
				if withRiver {
					return withPool(ctx, cfg, rivermigrate.DirectionUp)
				}
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, func(ctx context.Context, cfg config.Config) error {
				return postgres.MigrateDown(cfg.Database.URL, migrationsPath, downSteps)
			})
		},
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, func(ctx context.Context, cfg config.Config) error {
				version, dirty, err := postgres.MigrationVersion(cfg.Database.URL, migrationsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d\ndirty:   %t\n", version, dirty)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func runMigrate(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	logger := config.NewLogger(cfg.Logging)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	if err := fn(ctx, cfg); err != nil {
		return err
	}
	logger.Info().Str("command", cmd.Name()).Msg("migration complete")
	return nil
}

func withPool(ctx context.Context, cfg config.Config, direction rivermigrate.Direction) error {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return migrateRiver(ctx, pool, direction)
}
