package syncengine

import (
	"github.com/tonimelisma/mindwtr-sync/internal/merge"
	"github.com/tonimelisma/mindwtr-sync/internal/model"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// SyncResult is performSync's result shape from spec.md §6:
// {success, stats?, error?}.
type SyncResult struct {
	Success bool
	Stats   *merge.MergeStats
	Error   string
}

// recordHistory adds a SyncHistoryEntry to the front of
// settings.lastSyncHistory, which is kept newest first (the order the merge
// leaves it in), evicting the oldest entry once the ring buffer exceeds
// model.MaxSyncHistory, and updates the lastSyncAt/lastSyncStatus/
// lastSyncError summary fields alongside it.
func recordHistory(settings *model.Settings, now model.Timestamp, stats *merge.MergeStats, syncErr error) {
	status := "success"
	var errPtr *string
	if syncErr != nil {
		msg := transport.SanitizeError(syncErr.Error())
		status = "error"
		errPtr = &msg
	}

	entry := model.SyncHistoryEntry{
		At:     now,
		Status: status,
	}
	if stats != nil {
		entry.Conflicts = stats.Tasks.Conflicts + stats.Projects.Conflicts + stats.Sections.Conflicts + stats.Areas.Conflicts
		entry.ConflictIDs = append(entry.ConflictIDs, stats.Tasks.ConflictIDs...)
		entry.ConflictIDs = append(entry.ConflictIDs, stats.Projects.ConflictIDs...)
		entry.ConflictIDs = append(entry.ConflictIDs, stats.Sections.ConflictIDs...)
		entry.ConflictIDs = append(entry.ConflictIDs, stats.Areas.ConflictIDs...)
		entry.MaxClockSkewMs = maxInt64(stats.Tasks.MaxClockSkewMs, stats.Projects.MaxClockSkewMs, stats.Sections.MaxClockSkewMs, stats.Areas.MaxClockSkewMs)
		entry.TimestampAdjustments = stats.Tasks.TimestampAdjustments + stats.Projects.TimestampAdjustments + stats.Sections.TimestampAdjustments + stats.Areas.TimestampAdjustments
	}
	entry.Error = errPtr

	settings.LastSyncAt = &now
	settings.LastSyncStatus = &status
	settings.LastSyncError = errPtr

	history := append([]model.SyncHistoryEntry{entry}, settings.LastSyncHistory...)
	if len(history) > model.MaxSyncHistory {
		history = history[:model.MaxSyncHistory]
	}
	settings.LastSyncHistory = history
}

func maxInt64(values ...int64) int64 {
	var m int64
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
