package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Force an orphan-attachment garbage collection pass",
		Long:  "Runs orphan garbage collection immediately, bypassing the normal 24-hour gate.",
		RunE:  runGC,
	}
}

func runGC(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	data, err := cc.Store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	// Clear the gate so OrphanGC runs regardless of when it last ran.
	data.Settings.Attachments.LastCleanupAt = model.Timestamp(0)

	engine := cc.Orchestrator.AttachEngine()
	now := time.Now()
	ran, err := engine.OrphanGC(ctx, data, now)
	if err != nil {
		return fmt.Errorf("orphan gc failed: %w", err)
	}
	if err := cc.Store.SaveAll(ctx, data); err != nil {
		return fmt.Errorf("saving store after gc: %w", err)
	}

	if ran {
		cc.Statusf("orphan gc complete\n")
	} else {
		cc.Statusf("orphan gc skipped: last pass is within the gc interval\n")
	}

	purged, err := cc.Store.PurgeTombstones(ctx, now, data.Settings.Attachments.TombstoneRetentionDays)
	if err != nil {
		return fmt.Errorf("tombstone purge failed: %w", err)
	}
	cc.Statusf("tombstone purge complete: %d row(s) purged\n", purged)

	return nil
}
