package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func TestPurgeTombstones_RemovesOldTombstonesOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	oldDeleted := model.TimestampFromTime(now.Add(-100 * 24 * time.Hour))
	recentDeleted := model.TimestampFromTime(now.Add(-5 * 24 * time.Hour))

	stale := &model.Task{Title: "stale"}
	stale.ID = "task-stale"
	stale.DeletedAt = &oldDeleted
	fresh := &model.Task{Title: "fresh"}
	fresh.ID = "task-fresh"
	fresh.DeletedAt = &recentDeleted
	alive := &model.Task{Title: "alive"}
	alive.ID = "task-alive"

	data := model.Empty()
	data.Tasks = []*model.Task{stale, fresh, alive}
	require.NoError(t, s.SaveAll(ctx, data))

	purged, err := s.PurgeTombstones(ctx, now, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Tasks, 2)
	for _, task := range loaded.Tasks {
		assert.NotEqual(t, "stale", task.Title)
	}
}

func TestPurgeTombstones_DefaultsRetentionWhenUnset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	deleted := model.TimestampFromTime(now.Add(-91 * 24 * time.Hour))
	proj := &model.Project{Title: "done"}
	proj.DeletedAt = &deleted
	data := model.Empty()
	data.Projects = []*model.Project{proj}
	require.NoError(t, s.SaveAll(ctx, data))

	purged, err := s.PurgeTombstones(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}
