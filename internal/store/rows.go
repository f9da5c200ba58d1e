package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

// Every entity table stores the complete entity as a JSON document in
// attrs_json (the single source of truth, round-tripped through the
// model package's own json tags) alongside a handful of denormalized
// columns used for indexing, joins, and FTS triggers. Unmarshaling
// attrs_json back into the struct repopulates every field, including the
// ones also duplicated as columns.

func nullableTimestamp(t *model.Timestamp) any {
	if t == nil || *t == 0 {
		return nil
	}
	return int64(*t)
}

func scanNullableTimestamp(v sql.NullInt64) *model.Timestamp {
	if !v.Valid {
		return nil
	}
	t := model.Timestamp(v.Int64)
	return &t
}

func marshalEntity(id string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: marshaling %s: %w", id, err)
	}
	return string(raw), nil
}

func unmarshalTask(id, attrsJSON string) (*model.Task, error) {
	var t model.Task
	if err := json.Unmarshal([]byte(attrsJSON), &t); err != nil {
		return nil, fmt.Errorf("store: unmarshaling task %s: %w", id, err)
	}
	return &t, nil
}

func unmarshalProject(id, attrsJSON string) (*model.Project, error) {
	var p model.Project
	if err := json.Unmarshal([]byte(attrsJSON), &p); err != nil {
		return nil, fmt.Errorf("store: unmarshaling project %s: %w", id, err)
	}
	return &p, nil
}

func unmarshalSection(id, attrsJSON string) (*model.Section, error) {
	var s model.Section
	if err := json.Unmarshal([]byte(attrsJSON), &s); err != nil {
		return nil, fmt.Errorf("store: unmarshaling section %s: %w", id, err)
	}
	return &s, nil
}

func unmarshalArea(id, attrsJSON string) (*model.Area, error) {
	var a model.Area
	if err := json.Unmarshal([]byte(attrsJSON), &a); err != nil {
		return nil, fmt.Errorf("store: unmarshaling area %s: %w", id, err)
	}
	return &a, nil
}
