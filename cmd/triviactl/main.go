// triviactl manages the challenge store: schema migrations and seeding from files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"daily-trivia/internal/config"
	"daily-trivia/internal/logging"
)

// cli carries state shared by subcommands.
type cli struct {
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "triviactl",
		Short: "Manage the daily-trivia challenge store",
		Long: `triviactl applies Postgres migrations and loads challenges into the store
selected by STORE_DRIVER (postgres, sqlite or mongo).

Configuration comes from .env and the environment, the same as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Env, c.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newMigrateCmd(c), newSeedCmd(c))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
