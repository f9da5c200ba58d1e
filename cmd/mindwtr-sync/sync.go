package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mindwtr-sync/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	var dryRun, watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle, or keep syncing on a timer with --watch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if dryRun {
				stats, err := cc.Orchestrator.PerformDryRun(cmd.Context())
				if err != nil {
					return fmt.Errorf("dry-run failed: %w", err)
				}
				cc.Statusf("dry-run: would produce %d conflicts (no data written)\n", stats.TotalConflicts())
				return nil
			}

			if watch {
				cc.Statusf("watching for changes (interval %s)...\n", syncengine.DefaultWatchInterval)
				return cc.Orchestrator.RunWatch(cmd.Context(), syncengine.DefaultWatchInterval)
			}

			result, err := cc.Orchestrator.PerformSync(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			if !result.Success {
				return fmt.Errorf("sync failed: %s", result.Error)
			}

			if result.Stats != nil {
				cc.Statusf("sync complete: %d conflicts\n", result.Stats.TotalConflicts())
			} else {
				cc.Statusf("sync complete\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing anywhere")
	cmd.Flags().BoolVar(&watch, "watch", false, "run continuously, syncing on a timer and on file changes")

	return cmd
}
