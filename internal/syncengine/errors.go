package syncengine

import (
	"context"
	"errors"

	"github.com/tonimelisma/mindwtr-sync/internal/attach"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// ErrLocalSyncAbort means the store's freshness stamp advanced during a
// cycle (a local edit landed mid-sync), so the cycle was abandoned to
// avoid clobbering it. The caller treats this as a silent, re-queued
// follow-up, never as a reported error (spec.md §7).
var ErrLocalSyncAbort = errors.New("syncengine: local store changed during cycle")

// ErrOfflinePaused means the cycle aborted because the device appears to
// be offline (consecutive transport timeouts past the threshold, or a
// transport.ErrOffline). Per spec.md §7 this is reported as success with
// no history entry, not as an error.
var ErrOfflinePaused = errors.New("syncengine: cycle aborted, device offline")

// outcomeClass is the error taxonomy from spec.md §7. Only some classes
// are persisted as a failed history entry; offline and parse-error classes
// are treated as benign no-ops or silent fallbacks.
type outcomeClass int

const (
	outcomeSuccess outcomeClass = iota
	outcomeConfiguration
	outcomeOffline
	outcomeTransient
	outcomeAuth
	outcomeParse
	outcomeIntegrity
	outcomeLocalAbort
	outcomeFatalStore
)

// classify maps an error returned from a cycle step onto the taxonomy in
// spec.md §7, grounded on internal/graph/errors.go's classifyStatus/
// sentinel-per-status pattern, generalized to transport-neutral sentinels.
func classify(err error) outcomeClass {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrLocalSyncAbort):
		return outcomeLocalAbort
	case errors.Is(err, ErrOfflinePaused), errors.Is(err, transport.ErrOffline):
		return outcomeOffline
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return outcomeOffline
	case errors.Is(err, transport.ErrConfiguration):
		return outcomeConfiguration
	case errors.Is(err, transport.ErrAuth):
		return outcomeAuth
	case errors.Is(err, transport.ErrParse):
		return outcomeParse
	case errors.Is(err, attach.ErrIntegrity):
		return outcomeIntegrity
	case errors.Is(err, transport.ErrThrottled), errors.Is(err, transport.ErrTransient):
		return outcomeTransient
	default:
		return outcomeFatalStore
	}
}

// isBenign reports whether the outcome should be reported as a successful,
// unrecorded no-op rather than a failed cycle (offline detection and local
// conflict abort both fall into this bucket per spec.md §7).
func isBenign(c outcomeClass) bool {
	return c == outcomeOffline || c == outcomeLocalAbort
}
