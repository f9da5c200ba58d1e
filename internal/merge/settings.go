package merge

import (
	"sort"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

// mergeSettings merges the settings document shallowly: reserved
// sub-objects merge one level deep (remote keys fill gaps the local side
// doesn't set), lastSyncHistory is unioned then sorted by at descending and
// truncated to model.MaxSyncHistory, and externalCalendars is always taken
// from the local side since it is re-pulled from a device-local provider on
// every cycle.
func mergeSettings(local, remote model.Settings) model.Settings {
	merged := local

	merged.AI = mergeShallowMap(local.AI, remote.AI)
	merged.GTD = mergeShallowMap(local.GTD, remote.GTD)
	merged.Features = mergeShallowMap(local.Features, remote.Features)
	merged.Diagnostics = mergeShallowMap(local.Diagnostics, remote.Diagnostics)
	merged.Extra = mergeShallowMap(local.Extra, remote.Extra)

	merged.Attachments = local.Attachments
	if local.Attachments.LastCleanupAt == 0 {
		merged.Attachments.LastCleanupAt = remote.Attachments.LastCleanupAt
	}
	if local.Attachments.TombstoneRetentionDays == 0 {
		merged.Attachments.TombstoneRetentionDays = remote.Attachments.TombstoneRetentionDays
	}

	merged.LastSyncHistory = mergeSyncHistory(local.LastSyncHistory, remote.LastSyncHistory)

	// externalCalendars is device-local-authoritative: always re-inject the
	// local list, never the remote one.
	merged.ExternalCalendars = local.ExternalCalendars

	return merged
}

func mergeShallowMap(local, remote map[string]any) map[string]any {
	if local == nil && remote == nil {
		return nil
	}
	merged := make(map[string]any, len(local)+len(remote))
	for k, v := range remote {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}

func mergeSyncHistory(local, remote []model.SyncHistoryEntry) []model.SyncHistoryEntry {
	seen := make(map[string]struct{}, len(local)+len(remote))
	union := make([]model.SyncHistoryEntry, 0, len(local)+len(remote))

	add := func(entries []model.SyncHistoryEntry) {
		for _, e := range entries {
			key := e.At.String() + "|" + e.Status
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			union = append(union, e)
		}
	}
	add(local)
	add(remote)

	sort.Slice(union, func(i, j int) bool {
		return union[i].At > union[j].At
	})

	if len(union) > model.MaxSyncHistory {
		union = union[:model.MaxSyncHistory]
	}
	return union
}
