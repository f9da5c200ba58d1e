package attach

import (
	"sync"
	"time"
)

// MissingCooldown is how long a download is suppressed after a 404-like
// "attachment not found" failure.
const MissingCooldown = 15 * time.Minute

// ErrorCooldown is how long a download is suppressed after any other
// download failure.
const ErrorCooldown = 2 * time.Minute

// downloadBackoff tracks a per-attachment cooldown window, generalizing the
// teacher's per-path failure tracker: a single cooldown deadline per key,
// with the deadline's length depending on the failure kind, and no
// permanent suppression — once the cooldown elapses the attachment is
// eligible for another attempt.
type downloadBackoff struct {
	mu       sync.Mutex
	deadline map[string]time.Time
	nowFunc  func() time.Time
}

func newDownloadBackoff() *downloadBackoff {
	return &downloadBackoff{
		deadline: make(map[string]time.Time),
		nowFunc:  time.Now,
	}
}

// shouldSkip reports whether attachmentID is currently within its cooldown
// window.
func (b *downloadBackoff) shouldSkip(attachmentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	until, ok := b.deadline[attachmentID]
	if !ok {
		return false
	}
	if b.nowFunc().After(until) {
		delete(b.deadline, attachmentID)
		return false
	}
	return true
}

// recordMissing starts the longer cooldown used for 404-like failures.
func (b *downloadBackoff) recordMissing(attachmentID string) {
	b.record(attachmentID, MissingCooldown)
}

// recordError starts the shorter cooldown used for any other failure.
func (b *downloadBackoff) recordError(attachmentID string) {
	b.record(attachmentID, ErrorCooldown)
}

func (b *downloadBackoff) record(attachmentID string, cooldown time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deadline[attachmentID] = b.nowFunc().Add(cooldown)
}

// clear removes any cooldown for attachmentID, called after a successful
// download.
func (b *downloadBackoff) clear(attachmentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.deadline, attachmentID)
}
