package syncengine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/mindwtr-sync/internal/config"
	"github.com/tonimelisma/mindwtr-sync/internal/merge"
	"github.com/tonimelisma/mindwtr-sync/internal/model"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
	"github.com/tonimelisma/mindwtr-sync/internal/transport/jsondoc"
)

// runCycle executes exactly one pass of the control flow from spec.md §2:
// flush → attachments_prepare → readLocal → readRemote → merge →
// writeLocal → writeRemote → attachments → attachments_cleanup → refresh.
//
// It never returns a reportable error for the offline or local-abort
// outcome classes — those are folded into a successful, unrecorded
// SyncResult per spec.md §7. A context cancellation or deadline surfacing
// from a cycle step is classified as offline and folded in the same way;
// only a failure of the initial store load is returned as is.
func (o *Orchestrator) runCycle(ctx context.Context) (*SyncResult, error) {
	backend := o.currentBackend()
	attachEngine := o.currentAttach()
	cfg := o.currentConfig()

	o.logger.Info("sync cycle starting", slog.String("backend", string(cfg.SyncBackend)))

	// A device with no backend configured (spec.md §6: SYNC_BACKEND ∈
	// {off,...}, invalid -> off) has nothing to sync against. Short-circuit
	// before any local or remote I/O rather than run a doomed cycle that
	// would fail at writeRemote every time.
	if cfg.SyncBackend == config.BackendOff {
		o.logger.Info("sync cycle skipped: no backend configured")
		return &SyncResult{Success: true}, nil
	}

	// Step: flush. The store's writers are synchronous and durable (SQLite
	// WAL fsync on commit), so there is nothing buffered to flush here; the
	// step exists as an explicit hook matching spec.md §2's control flow,
	// the way the teacher's Engine.RunOnce names a step for each phase even
	// when a given drive's mode skips it.
	freshnessAtStart := o.store.LastDataChangeAt()

	// Step: attachments_prepare + readLocal.
	local, err := o.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncengine: loading local store: %w", err)
	}

	local, err = attachEngine.PreSyncPass(ctx, local)
	if err != nil {
		return o.finishWithError(ctx, local, err)
	}

	// Step: readRemote.
	remote, err := readRemote(ctx, backend)
	err = o.noteTransportOutcome(err)
	if err != nil {
		class := classify(err)
		if class == outcomeParse {
			o.logger.Warn("remote document failed to parse, treating as absent", slog.String("error", err.Error()))
			remote = nil
		} else {
			return o.finishWithError(ctx, local, err)
		}
	}

	// Step: merge.
	result, err := merge.Merge(local, remote)
	if err != nil {
		return o.finishWithError(ctx, local, fmt.Errorf("syncengine: merging: %w", err))
	}
	merged := result.Data

	// Step: writeLocal, guarded by freshness.
	if o.store.LastDataChangeAt() != freshnessAtStart {
		return o.abortLocal(ctx)
	}
	if err := o.store.SaveAll(ctx, merged); err != nil {
		return o.finishWithError(ctx, merged, fmt.Errorf("syncengine: saving local store: %w", err))
	}

	// Step: writeRemote, guarded by freshness again (the write above bumps
	// the stamp itself, so re-capture it before comparing).
	freshnessAfterLocalWrite := o.store.LastDataChangeAt()
	encoded, err := jsondoc.Encode(merged)
	if err != nil {
		return o.finishWithError(ctx, merged, fmt.Errorf("syncengine: encoding document: %w", err))
	}
	if err := o.noteTransportOutcome(backend.WriteJSON(ctx, encoded)); err != nil {
		return o.finishWithError(ctx, merged, err)
	}
	if o.store.LastDataChangeAt() != freshnessAfterLocalWrite {
		return o.abortLocal(ctx)
	}

	// Step: attachments (post-merge download pass). Attachment errors here
	// never fail the whole cycle per spec.md §7 — they are logged and
	// reflected in localStatus only.
	if err := attachEngine.PostMergePass(ctx, merged); err != nil {
		o.logger.Warn("attachment post-merge pass reported an error", slog.String("error", err.Error()))
	}

	// Step: attachments_cleanup.
	if ran, err := attachEngine.OrphanGC(ctx, merged, o.nowFunc()); err != nil {
		o.logger.Warn("orphan GC failed", slog.String("error", err.Error()))
	} else if ran {
		o.logger.Info("orphan GC ran")
	}

	// Step: refresh. Persist the attachment/GC mutations and the sync
	// history entry together.
	recordHistory(&merged.Settings, model.TimestampFromTime(o.nowFunc()), &result.Stats, nil)
	if err := o.store.SaveAll(ctx, merged); err != nil {
		return nil, fmt.Errorf("syncengine: saving refreshed state: %w", err)
	}

	o.logger.Info("sync cycle complete",
		slog.String("status", string(result.Status)),
		slog.Int("conflicts", result.Stats.TotalConflicts()),
	)

	return &SyncResult{Success: true, Stats: &result.Stats}, nil
}

// readRemote fetches and decodes the remote document. A nil, nil return
// means the remote is authoritatively empty.
func readRemote(ctx context.Context, backend transport.Backend) (*model.AppData, error) {
	raw, err := backend.ReadJSON(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	doc, err := jsondoc.Decode(raw)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// finishWithError classifies err, persists a history entry unless the
// outcome class is benign, and returns the SyncResult/error pair the
// caller should surface.
func (o *Orchestrator) finishWithError(ctx context.Context, data *model.AppData, err error) (*SyncResult, error) {
	class := classify(err)

	if class == outcomeLocalAbort {
		return o.abortLocal(ctx)
	}
	if class == outcomeOffline {
		o.logger.Info("sync cycle paused: device appears offline", slog.String("error", err.Error()))
		return &SyncResult{Success: true}, nil
	}

	if data != nil {
		recordHistory(&data.Settings, model.TimestampFromTime(o.nowFunc()), nil, err)
		if saveErr := o.store.SaveAll(ctx, data); saveErr != nil {
			o.logger.Error("failed to persist sync history after error",
				slog.String("original_error", err.Error()), slog.String("save_error", saveErr.Error()))
		}
	}

	o.logger.Error("sync cycle failed", slog.String("error", transport.SanitizeError(err.Error())))
	return &SyncResult{Success: false, Error: transport.SanitizeError(err.Error())}, err
}

// abortLocal implements the LocalSyncAbort outcome: the cycle is abandoned
// silently (no history entry, no error surfaced) because a local edit
// landed mid-cycle. The caller's state machine re-queues exactly one
// follow-up cycle.
func (o *Orchestrator) abortLocal(ctx context.Context) (*SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.logger.Info("sync cycle aborted: local store changed mid-cycle, re-queuing")
	o.mu.Lock()
	o.state = stateRunningWithPending
	o.mu.Unlock()
	return &SyncResult{Success: true}, nil
}
