package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"daily-trivia/internal/seed"
	"daily-trivia/internal/store"
)

func newSeedCmd(c *cli) *cobra.Command {
	var (
		file    string
		dryRun  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert challenges from a YAML, TOML or JSON file",
		Long: `Loads challenges from --file and inserts or replaces them by date in the
configured store. Re-running with the same file is safe.

Example:
  triviactl seed --file seeds/challenges.example.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("seed: --file is required")
			}
			challenges, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d challenges valid in %s\n", len(challenges), file)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := store.Open(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close(context.Background()) }()

			n, err := seed.Apply(ctx, st.Repository, challenges, c.logger)
			if err != nil {
				return err
			}
			c.logger.Info("seed complete", zap.String("driver", st.Driver), zap.Int("challenges", n))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d challenges\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (.yaml, .yml, .toml or .json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall time limit for connecting and writing")
	return cmd
}
