package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

// pageSize bounds how many rows a single paged read pulls into memory.
const pageSize = 1000

// LoadAll reads every entity and the settings singleton into an AppData,
// paging through each table at pageSize rows to bound memory on large
// documents.
func (s *Store) LoadAll(ctx context.Context) (*model.AppData, error) {
	data := model.Empty()

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return nil, err
	}
	data.Tasks = tasks

	projects, err := s.loadProjects(ctx)
	if err != nil {
		return nil, err
	}
	data.Projects = projects

	sections, err := s.loadSections(ctx)
	if err != nil {
		return nil, err
	}
	data.Sections = sections

	areas, err := s.loadAreas(ctx)
	if err != nil {
		return nil, err
	}
	data.Areas = areas

	settings, err := s.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	data.Settings = settings

	return data, nil
}

func (s *Store) loadTasks(ctx context.Context) ([]*model.Task, error) {
	var out []*model.Task
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `SELECT id, attrs_json FROM tasks ORDER BY id LIMIT ? OFFSET ?`, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("store: querying tasks: %w", err)
		}

		n, err := scanInto(rows, func(id, attrsJSON string) error {
			t, err := unmarshalTask(id, attrsJSON)
			if err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if n < pageSize {
			break
		}
		offset += pageSize
	}
	return out, nil
}

func (s *Store) loadProjects(ctx context.Context) ([]*model.Project, error) {
	var out []*model.Project
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `SELECT id, attrs_json FROM projects ORDER BY id LIMIT ? OFFSET ?`, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("store: querying projects: %w", err)
		}

		n, err := scanInto(rows, func(id, attrsJSON string) error {
			p, err := unmarshalProject(id, attrsJSON)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if n < pageSize {
			break
		}
		offset += pageSize
	}
	return out, nil
}

func (s *Store) loadSections(ctx context.Context) ([]*model.Section, error) {
	var out []*model.Section
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `SELECT id, attrs_json FROM sections ORDER BY id LIMIT ? OFFSET ?`, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("store: querying sections: %w", err)
		}

		n, err := scanInto(rows, func(id, attrsJSON string) error {
			sec, err := unmarshalSection(id, attrsJSON)
			if err != nil {
				return err
			}
			out = append(out, sec)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if n < pageSize {
			break
		}
		offset += pageSize
	}
	return out, nil
}

func (s *Store) loadAreas(ctx context.Context) ([]*model.Area, error) {
	var out []*model.Area
	offset := 0
	for {
		rows, err := s.db.QueryContext(ctx, `SELECT id, attrs_json FROM areas ORDER BY id LIMIT ? OFFSET ?`, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("store: querying areas: %w", err)
		}

		n, err := scanInto(rows, func(id, attrsJSON string) error {
			a, err := unmarshalArea(id, attrsJSON)
			if err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if n < pageSize {
			break
		}
		offset += pageSize
	}
	return out, nil
}

// scanInto drains rows of (id, attrsJSON) pairs through fn and returns the
// row count, closing rows in all cases.
func scanInto(rows *sql.Rows, fn func(id, attrsJSON string) error) (int, error) {
	defer rows.Close()

	n := 0
	for rows.Next() {
		var id, attrsJSON string
		if err := rows.Scan(&id, &attrsJSON); err != nil {
			return n, fmt.Errorf("store: scanning row: %w", err)
		}
		if err := fn(id, attrsJSON); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

func (s *Store) loadSettings(ctx context.Context) (model.Settings, error) {
	var docJSON string
	err := s.db.QueryRowContext(ctx, `SELECT doc_json FROM settings WHERE id = 1`).Scan(&docJSON)
	if err == sql.ErrNoRows {
		return model.Settings{}, nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("store: loading settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal([]byte(docJSON), &settings); err != nil {
		return model.Settings{}, fmt.Errorf("store: unmarshaling settings: %w", err)
	}
	return settings, nil
}
