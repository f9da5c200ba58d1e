package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ftsLockTTL bounds how long a caller is allowed to hold the fts_lock
// advisory row before it's considered abandoned and safe to steal.
const ftsLockTTL = 5 * time.Minute

// reservedFTSTokens are FTS5 query-syntax keywords that must not leak
// through from a free-text search box.
var reservedFTSTokens = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
}

// SearchResult is one match from SearchAll.
type SearchResult struct {
	Kind  string // "task" or "project"
	ID    string
	Title string
}

// SearchAll runs query against both FTS5 indices and returns task matches
// followed by project matches, each group ordered by relevance and capped
// at limit on its own, excluding tombstoned rows. On an FTS query failure
// it rebuilds the indices under the advisory lock and retries once.
func (s *Store) SearchAll(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	matchQuery := sanitizeFTSQuery(query)
	if matchQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	results, err := s.runFTSQuery(ctx, matchQuery, limit)
	if err == nil {
		return results, nil
	}

	if rebuildErr := s.rebuildFTS(ctx); rebuildErr != nil {
		return nil, fmt.Errorf("store: search failed and rebuild failed: %w (original: %v)", rebuildErr, err)
	}

	return s.runFTSQuery(ctx, matchQuery, limit)
}

// sanitizeFTSQuery strips control characters, drops reserved FTS operators,
// and appends '*' to each remaining term so a plain word becomes a prefix
// match, joining terms with an implicit AND.
func sanitizeFTSQuery(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}

	fields := strings.Fields(b.String())
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if reservedFTSTokens[strings.ToUpper(f)] {
			continue
		}
		f = strings.Map(func(r rune) rune {
			if strings.ContainsRune(`"*:()^`, r) {
				return -1
			}
			return r
		}, f)
		if f == "" {
			continue
		}
		terms = append(terms, f+"*")
	}

	return strings.Join(terms, " ")
}

func (s *Store) runFTSQuery(ctx context.Context, matchQuery string, limit int) ([]SearchResult, error) {
	var out []SearchResult

	taskRows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title
		FROM tasks_fts
		JOIN tasks t ON t.rowid = tasks_fts.rowid
		WHERE tasks_fts MATCH ? AND t.deleted_at IS NULL
		ORDER BY bm25(tasks_fts)
		LIMIT ?`, matchQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("store: searching tasks: %w", err)
	}
	if err := collectSearchRows(taskRows, "task", &out); err != nil {
		return nil, err
	}

	projectRows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title
		FROM projects_fts
		JOIN projects p ON p.rowid = projects_fts.rowid
		WHERE projects_fts MATCH ? AND p.deleted_at IS NULL
		ORDER BY bm25(projects_fts)
		LIMIT ?`, matchQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("store: searching projects: %w", err)
	}
	if err := collectSearchRows(projectRows, "project", &out); err != nil {
		return nil, err
	}

	return out, nil
}

func collectSearchRows(rows *sql.Rows, kind string, out *[]SearchResult) error {
	defer rows.Close()
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return fmt.Errorf("store: scanning %s search row: %w", kind, err)
		}
		r.Kind = kind
		*out = append(*out, r)
	}
	return rows.Err()
}

// rebuildFTS acquires the fts_lock advisory row (stealing it if its holder's
// TTL has expired), clears and repopulates both FTS5 indices from their
// base tables, then releases the lock.
func (s *Store) rebuildFTS(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning FTS rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	var lockedAt int64
	if err := tx.QueryRowContext(ctx, `SELECT locked_at FROM fts_lock WHERE id = 1`).Scan(&lockedAt); err != nil {
		return fmt.Errorf("store: reading fts_lock: %w", err)
	}

	now := time.Now().Unix()
	if lockedAt != 0 && now-lockedAt < int64(ftsLockTTL.Seconds()) {
		return fmt.Errorf("store: fts rebuild already in progress")
	}

	if _, err := tx.ExecContext(ctx, `UPDATE fts_lock SET locked_at = ?, locked_by = 'rebuild' WHERE id = 1`, now); err != nil {
		return fmt.Errorf("store: acquiring fts_lock: %w", err)
	}

	for _, ftsTable := range []string{"tasks_fts", "projects_fts"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(%s) VALUES('delete-all')`, ftsTable, ftsTable)); err != nil {
			return fmt.Errorf("store: clearing %s: %w", ftsTable, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tasks_fts(rowid, id, title, description)
		SELECT rowid, id, title, coalesce(description, '') FROM tasks`); err != nil {
		return fmt.Errorf("store: repopulating tasks_fts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects_fts(rowid, id, title, support_notes)
		SELECT rowid, id, title, coalesce(support_notes, '') FROM projects`); err != nil {
		return fmt.Errorf("store: repopulating projects_fts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE fts_lock SET locked_at = 0, locked_by = '' WHERE id = 1`); err != nil {
		return fmt.Errorf("store: releasing fts_lock: %w", err)
	}

	return tx.Commit()
}
