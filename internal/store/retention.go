package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultTombstoneRetentionDays is the horizon a tombstoned entity survives
// before it is hard-purged, per SPEC_FULL.md's resolution of spec.md's open
// question on purgedAt retention. Callers may override it via
// settings.attachments.tombstoneRetentionDays.
const DefaultTombstoneRetentionDays = 90

// PurgeTombstones hard-deletes rows whose deletedAt is older than
// retentionDays (DefaultTombstoneRetentionDays when retentionDays <= 0),
// stamping purgedAt first so a concurrent reader sees the marker before the
// row disappears, mirroring the teacher's CleanupTombstones(retentionDays)
// two-step "mark then sweep" shape. Runs in one transaction covering all
// four tables;
// returns the number of rows purged across all four tables.
func (s *Store) PurgeTombstones(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultTombstoneRetentionDays
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: beginning purge transaction: %w", err)
	}
	defer tx.Rollback()

	var purged int64
	for _, table := range []string{"tasks", "projects", "sections", "areas"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %s SET purged_at = ? WHERE deleted_at IS NOT NULL AND deleted_at < ? AND purged_at IS NULL`, table),
			now.UnixNano(), cutoff); err != nil {
			return 0, fmt.Errorf("store: marking %s purged: %w", table, err)
		}

		res, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE deleted_at IS NOT NULL AND deleted_at < ?`, table), cutoff)
		if err != nil {
			return 0, fmt.Errorf("store: purging %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("store: counting purged %s: %w", table, err)
		}
		purged += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: committing purge transaction: %w", err)
	}

	s.bumpFreshness()
	return purged, nil
}
