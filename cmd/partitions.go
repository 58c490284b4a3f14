package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/partition"
	"faultline/internal/usecase/ingest"
)

var (
	ensureAheadWeeks int
	pruneKeepWeeks   int
)

var partitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "Manage weekly event partitions",
}

// partitionsEnsureCmd creates event partitions ahead of traffic so the first
// write of a new week never pays the DDL.
var partitionsEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create event partitions for the current and upcoming weeks",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		manager := partition.NewManager(app.DB)
		now := time.Now()
		for week := 0; week <= ensureAheadWeeks; week++ {
			name, err := manager.Ensure(ctx, now.AddDate(0, 0, 7*week))
			if err != nil {
				logging.Error(ctx, "ensure partition failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "ensure partition")
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "partition ensured: %s\n", name); err != nil {
				return errs.Wrap(err, "write partitions output")
			}
		}
		return nil
	}),
}

var partitionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop event partitions older than the retention window",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cutoff := time.Now().UTC().AddDate(0, 0, -7*pruneKeepWeeks)
		dropped, err := partition.NewManager(app.DB).PruneBefore(ctx, cutoff)
		if err != nil {
			logging.Error(ctx, "prune partitions failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "prune partitions")
		}

		logging.Info(ctx, "partitions pruned", slog.Int("dropped", len(dropped)))
		for _, name := range dropped {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "dropped: %s\n", name); err != nil {
				return errs.Wrap(err, "write partitions output")
			}
		}
		if len(dropped) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "nothing to prune"); err != nil {
				return errs.Wrap(err, "write partitions output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(partitionsCmd)
	partitionsCmd.AddCommand(partitionsEnsureCmd)
	partitionsCmd.AddCommand(partitionsPruneCmd)

	partitionsEnsureCmd.Flags().IntVar(&ensureAheadWeeks, "weeks", 0, "Additional weeks ahead to create")
	partitionsPruneCmd.Flags().IntVar(&pruneKeepWeeks, "keep-weeks", 4, "Weeks of event history to keep")
}
