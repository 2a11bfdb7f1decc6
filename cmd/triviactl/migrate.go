package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"daily-trivia/internal/config"
	"daily-trivia/internal/db/migrate"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect Postgres schema migrations",
		Long: `Runs the embedded SQL migrations against DATABASE_URL.
SQLite creates its schema on open and MongoDB its indexes, so only the
postgres driver uses migrations.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(c, "up")
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(c, "down")
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requirePostgres(c.cfg); err != nil {
					return err
				}
				v, dirty, err := migrate.Version(c.cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}

func runMigrate(c *cli, direction string) error {
	if err := requirePostgres(c.cfg); err != nil {
		return err
	}
	if err := migrate.Run(c.cfg.DatabaseURL, direction); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	c.logger.Info("migrations applied", zap.String("direction", direction))
	return nil
}

func requirePostgres(cfg *config.Config) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("migrate: STORE_DRIVER=%s does not use migrations", cfg.StoreDriver)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	return nil
}
