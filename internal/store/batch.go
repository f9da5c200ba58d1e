package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

// upsertChunkSize is the batch size the upsert loops walk entities in; each
// entity is still written by its own single-row INSERT ... ON CONFLICT.
const upsertChunkSize = 200

// SaveAll persists data inside a single transaction: delete rows no longer
// present, upsert in chunks, upsert settings, commit. The transaction is
// opened with SQLite's default deferred locking, not BEGIN IMMEDIATE, and
// absent rows are found with a per-table "id NOT IN (...)" list rather than
// temp id tables. Any failure rolls the whole transaction back, so a
// cycle's local write is all-or-nothing.
func (s *Store) SaveAll(ctx context.Context, data *model.AppData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	if err := pruneAbsent(ctx, tx, "tasks", ids(data.Tasks, (*model.Task).GetID)); err != nil {
		return err
	}
	if err := pruneAbsent(ctx, tx, "projects", ids(data.Projects, (*model.Project).GetID)); err != nil {
		return err
	}
	if err := pruneAbsent(ctx, tx, "sections", ids(data.Sections, (*model.Section).GetID)); err != nil {
		return err
	}
	if err := pruneAbsent(ctx, tx, "areas", ids(data.Areas, (*model.Area).GetID)); err != nil {
		return err
	}

	if err := upsertTasks(ctx, tx, data.Tasks); err != nil {
		return err
	}
	if err := upsertProjects(ctx, tx, data.Projects); err != nil {
		return err
	}
	if err := upsertSections(ctx, tx, data.Sections); err != nil {
		return err
	}
	if err := upsertAreas(ctx, tx, data.Areas); err != nil {
		return err
	}
	if err := upsertSettings(ctx, tx, &data.Settings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing save transaction: %w", err)
	}

	s.bumpFreshness()
	return nil
}

func ids[T any](items []T, getID func(T) string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = getID(item)
	}
	return out
}

// pruneAbsent deletes every row in table whose id is not present in keep,
// implementing the "hard delete of no-longer-present entities" step. An
// empty keep set means every existing row is absent and the table is
// cleared.
func pruneAbsent(ctx context.Context, tx *sql.Tx, table string, keep []string) error {
	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("store: clearing %s: %w", table, err)
		}
		return nil
	}

	placeholders := make([]string, len(keep))
	args := make([]any, len(keep))
	for i, id := range keep {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id NOT IN (%s)", table, joinPlaceholders(placeholders))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: pruning %s: %w", table, err)
	}
	return nil
}

func joinPlaceholders(p []string) string {
	out := p[0]
	for _, v := range p[1:] {
		out += "," + v
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}
	return append(chunks, items)
}

const sqlUpsertTask = `
INSERT INTO tasks (id, title, status, priority, project_id, section_id, area_id,
	start_time, due_date, review_at, completed_at, description, attrs_json,
	created_at, updated_at, deleted_at, purged_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title        = excluded.title,
	status       = excluded.status,
	priority     = excluded.priority,
	project_id   = excluded.project_id,
	section_id   = excluded.section_id,
	area_id      = excluded.area_id,
	start_time   = excluded.start_time,
	due_date     = excluded.due_date,
	review_at    = excluded.review_at,
	completed_at = excluded.completed_at,
	description  = excluded.description,
	attrs_json   = excluded.attrs_json,
	updated_at   = excluded.updated_at,
	deleted_at   = excluded.deleted_at,
	purged_at    = excluded.purged_at`

func upsertTasks(ctx context.Context, tx *sql.Tx, tasks []*model.Task) error {
	for _, batch := range chunk(tasks, upsertChunkSize) {
		for _, t := range batch {
			attrsJSON, err := marshalEntity(t.GetID(), t)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqlUpsertTask,
				t.GetID(), t.Title, string(t.Status), t.Priority,
				t.ProjectID, t.SectionID, t.AreaID,
				nullableTimestamp(t.StartTime), nullableTimestamp(t.DueDate),
				nullableTimestamp(t.ReviewAt), nullableTimestamp(t.CompletedAt),
				t.Description, attrsJSON,
				int64(t.CreatedAt), int64(t.UpdatedAt),
				nullableTimestamp(t.DeletedAt), nullableTimestamp(t.PurgedAt),
			); err != nil {
				return fmt.Errorf("store: upserting task %s: %w", t.GetID(), err)
			}
		}
	}
	return nil
}

const sqlUpsertProject = `
INSERT INTO projects (id, title, status, color, order_num, area_id, review_at,
	support_notes, attrs_json, created_at, updated_at, deleted_at, purged_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title         = excluded.title,
	status        = excluded.status,
	color         = excluded.color,
	order_num     = excluded.order_num,
	area_id       = excluded.area_id,
	review_at     = excluded.review_at,
	support_notes = excluded.support_notes,
	attrs_json    = excluded.attrs_json,
	updated_at    = excluded.updated_at,
	deleted_at    = excluded.deleted_at,
	purged_at     = excluded.purged_at`

func upsertProjects(ctx context.Context, tx *sql.Tx, projects []*model.Project) error {
	for _, batch := range chunk(projects, upsertChunkSize) {
		for _, p := range batch {
			attrsJSON, err := marshalEntity(p.GetID(), p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqlUpsertProject,
				p.GetID(), p.Title, string(p.Status), p.Color, p.Order, p.AreaID,
				nullableTimestamp(p.ReviewAt), p.SupportNotes, attrsJSON,
				int64(p.CreatedAt), int64(p.UpdatedAt),
				nullableTimestamp(p.DeletedAt), nullableTimestamp(p.PurgedAt),
			); err != nil {
				return fmt.Errorf("store: upserting project %s: %w", p.GetID(), err)
			}
		}
	}
	return nil
}

const sqlUpsertSection = `
INSERT INTO sections (id, project_id, title, order_num, attrs_json,
	created_at, updated_at, deleted_at, purged_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	project_id = excluded.project_id,
	title      = excluded.title,
	order_num  = excluded.order_num,
	attrs_json = excluded.attrs_json,
	updated_at = excluded.updated_at,
	deleted_at = excluded.deleted_at,
	purged_at  = excluded.purged_at`

func upsertSections(ctx context.Context, tx *sql.Tx, sections []*model.Section) error {
	for _, batch := range chunk(sections, upsertChunkSize) {
		for _, sec := range batch {
			attrsJSON, err := marshalEntity(sec.GetID(), sec)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqlUpsertSection,
				sec.GetID(), sec.ProjectID, sec.Title, sec.Order, attrsJSON,
				int64(sec.CreatedAt), int64(sec.UpdatedAt),
				nullableTimestamp(sec.DeletedAt), nullableTimestamp(sec.PurgedAt),
			); err != nil {
				return fmt.Errorf("store: upserting section %s: %w", sec.GetID(), err)
			}
		}
	}
	return nil
}

const sqlUpsertArea = `
INSERT INTO areas (id, name, order_num, attrs_json, created_at, updated_at, deleted_at, purged_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name       = excluded.name,
	order_num  = excluded.order_num,
	attrs_json = excluded.attrs_json,
	updated_at = excluded.updated_at,
	deleted_at = excluded.deleted_at,
	purged_at  = excluded.purged_at`

func upsertAreas(ctx context.Context, tx *sql.Tx, areas []*model.Area) error {
	for _, batch := range chunk(areas, upsertChunkSize) {
		for _, a := range batch {
			attrsJSON, err := marshalEntity(a.GetID(), a)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, sqlUpsertArea,
				a.GetID(), a.Name, a.Order, attrsJSON,
				int64(a.CreatedAt), int64(a.UpdatedAt),
				nullableTimestamp(a.DeletedAt), nullableTimestamp(a.PurgedAt),
			); err != nil {
				return fmt.Errorf("store: upserting area %s: %w", a.GetID(), err)
			}
		}
	}
	return nil
}

const sqlUpsertSettings = `
INSERT INTO settings (id, doc_json, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET doc_json = excluded.doc_json, updated_at = excluded.updated_at`

func upsertSettings(ctx context.Context, tx *sql.Tx, settings *model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("store: marshaling settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlUpsertSettings, string(raw), int64(model.Now())); err != nil {
		return fmt.Errorf("store: upserting settings: %w", err)
	}
	return nil
}
