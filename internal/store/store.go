// Package store implements the local SQLite-backed document store: the
// tasks/projects/sections/areas/settings tables, FTS5 full-text search, and
// the five-step batch upsert transaction that persists a merged AppData.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

// walJournalSizeLimit caps the WAL file before SQLite forces a checkpoint.
const walJournalSizeLimit = 67108864 // 64 MiB

// Store wraps a SQLite database holding the sync document's normalized
// tables plus the settings singleton row.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// lastDataChangeAt is the freshness guard's monotonic stamp, advanced on
	// every local mutation committed through SaveAll.
	lastDataChangeAt atomic.Int64
}

// Open creates or upgrades the database at path (":memory:" for tests),
// applies pending migrations, and configures WAL mode.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening store database", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	// SQLite only supports one writer at a time and an in-memory DSN refers
	// to a distinct database per connection; a single pooled connection
	// keeps both the single-writer model and in-memory test databases
	// correct.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	s.lastDataChangeAt.Store(1)

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastDataChangeAt returns the current freshness stamp.
func (s *Store) LastDataChangeAt() int64 {
	return s.lastDataChangeAt.Load()
}

func (s *Store) bumpFreshness() {
	s.lastDataChangeAt.Add(1)
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}
		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}
