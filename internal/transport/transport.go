// Package transport defines the Backend contract shared by every sync
// destination (local file tree, WebDAV collection, self-hosted cloud
// endpoint, or no backend at all) and the sentinel errors used to classify
// failures the same way regardless of which backend produced them.
package transport

import (
	"context"
	"errors"
)

// ProgressFunc reports incremental byte progress for a GetFile/PutFile
// transfer. total is 0 when the size is not known in advance.
type ProgressFunc func(transferred, total int64)

// Backend is the transport-neutral contract every sync destination
// implements. Every method takes ctx as its first argument because every
// one of them is a suspension point per the orchestrator's concurrency
// model: it may block on network I/O and must honor cancellation.
type Backend interface {
	// ReadJSON fetches the sync document's raw bytes. A nil return with a
	// nil error means the remote is authoritatively empty (no document has
	// ever been written there) — not the same as an error.
	ReadJSON(ctx context.Context) ([]byte, error)

	// WriteJSON writes the sync document's bytes atomically from a
	// reader's perspective: either the whole document is visible, or the
	// previous one is, never a partial write.
	WriteJSON(ctx context.Context, data []byte) error

	// GetFile downloads the attachment blob named by key. progress may be
	// nil.
	GetFile(ctx context.Context, key string, progress ProgressFunc) ([]byte, error)

	// PutFile uploads data under key with the given MIME type. Idempotent:
	// calling it twice with the same key and bytes is safe.
	PutFile(ctx context.Context, key, mimeType string, data []byte, progress ProgressFunc) error

	// DeleteFile removes the blob at key. Idempotent: deleting an
	// already-absent key is not an error.
	DeleteFile(ctx context.Context, key string) error

	// Exists reports whether a blob is present at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Sentinel errors every backend classifies its failures into, so the
// orchestrator and attachment engine can apply one error-handling policy
// regardless of backend (spec.md §7).
var (
	// ErrConfiguration means the backend is missing a required setting
	// (URL, path, token) — fail fast, no retry.
	ErrConfiguration = errors.New("transport: configuration error")

	// ErrOffline means the device has no network path to the backend.
	// Callers treat this as a clean, non-error pause, not a failure.
	ErrOffline = errors.New("transport: offline")

	// ErrAuth means the backend rejected credentials (401/403 or
	// equivalent). No retry; surfaced with an actionable message.
	ErrAuth = errors.New("transport: authentication failed")

	// ErrThrottled means the backend is rate-limiting the caller (429 or
	// equivalent). Retried with backoff honoring Retry-After when present.
	ErrThrottled = errors.New("transport: rate limited")

	// ErrTransient means a retryable transport-level failure occurred
	// (timeout, connection reset, 5xx).
	ErrTransient = errors.New("transport: transient failure")

	// ErrNotFound means the requested resource does not exist remotely.
	ErrNotFound = errors.New("transport: not found")

	// ErrParse means the document bytes could not be parsed as JSON even
	// after sanitization. Callers treat the remote as absent rather than
	// failing the cycle.
	ErrParse = errors.New("transport: parse error")

	// ErrUnsupported means the backend does not implement the requested
	// operation (e.g. WriteJSON against the Off backend).
	ErrUnsupported = errors.New("transport: unsupported operation")
)

// Error wraps a sentinel with backend-specific detail for logging, while
// remaining unwrappable via errors.Is against the sentinels above.
type Error struct {
	Backend string
	Op      string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Backend + ": " + e.Op + ": " + e.Err.Error() + ": " + e.Detail
	}
	return e.Backend + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err (or anything it wraps) is a transport
// failure class that should be retried with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrTransient)
}
