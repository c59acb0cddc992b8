package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/willibrandon/rdsprobe/internal/logger"
	"github.com/willibrandon/rdsprobe/internal/storage/sqlite"
)

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		prune  time.Duration
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded by 'rdsprobe run' when history is enabled
(history.enabled in config, or run --record).

Examples:
  rdsprobe history
  rdsprobe history --limit 50 -o json
  rdsprobe history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}

			cfg := loadHistoryConfig()
			defer logger.Close()

			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.History.Path); os.IsNotExist(err) {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			hdb, err := sqlite.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer hdb.Close()
			store := sqlite.NewRunStore(hdb)

			ctx := context.Background()

			if prune > 0 {
				removed, err := store.Prune(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d runs older than %s\n", removed, prune)
				return nil
			}

			runs, err := store.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}

			if output != outputText {
				return encode(out, output, runs)
			}
			printHistory(out, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().DurationVar(&prune, "prune", 0, "remove runs older than this duration instead of listing")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	return cmd
}
