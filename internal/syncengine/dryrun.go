package syncengine

import (
	"context"
	"fmt"

	"github.com/tonimelisma/mindwtr-sync/internal/merge"
)

// PerformDryRun runs the readLocal/readRemote/merge steps of a cycle and
// reports what the merge would produce, without writing to the store or the
// backend and without running the attachment engine. It does not
// participate in the single-flight state machine: a dry run never mutates
// anything a real cycle's freshness guard would need to protect.
func (o *Orchestrator) PerformDryRun(ctx context.Context) (*merge.MergeStats, error) {
	backend := o.currentBackend()

	local, err := o.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: loading local store: %w", err)
	}

	remote, err := readRemote(ctx, backend)
	if err != nil {
		if classify(err) != outcomeParse {
			return nil, err
		}
		remote = nil
	}

	result, err := merge.Merge(local, remote)
	if err != nil {
		return nil, fmt.Errorf("syncengine: merging: %w", err)
	}
	return &result.Stats, nil
}
