package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadAll_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := &model.Task{Title: "write report", Status: model.TaskStatusNext}
	project := &model.Project{Title: "Q3 planning", Status: model.ProjectStatusActive}
	area := &model.Area{Name: "Work"}

	data := model.Empty()
	data.Tasks = []*model.Task{task}
	data.Projects = []*model.Project{project}
	data.Areas = []*model.Area{area}

	require.NoError(t, s.SaveAll(ctx, data))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Tasks, 1)
	require.Len(t, loaded.Projects, 1)
	require.Len(t, loaded.Areas, 1)
	assert.Equal(t, "write report", loaded.Tasks[0].Title)
	assert.Equal(t, "Q3 planning", loaded.Projects[0].Title)
	assert.Equal(t, "Work", loaded.Areas[0].Name)
}

func TestSaveAll_PrunesAbsentRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	data := model.Empty()
	data.Tasks = []*model.Task{{Title: "first"}}
	require.NoError(t, s.SaveAll(ctx, data))

	data2 := model.Empty()
	require.NoError(t, s.SaveAll(ctx, data2))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Tasks)
}

func TestSaveAll_AdvancesFreshnessStamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	before := s.LastDataChangeAt()
	require.NoError(t, s.SaveAll(ctx, model.Empty()))
	assert.Greater(t, s.LastDataChangeAt(), before)
}

func TestSearchAll_FindsTaskByTitlePrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	data := model.Empty()
	data.Tasks = []*model.Task{{Title: "renew passport"}}
	require.NoError(t, s.SaveAll(ctx, data))

	results, err := s.SearchAll(ctx, "passp", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "task", results[0].Kind)
}

func TestSanitizeFTSQuery_DropsReservedTokensAndAppendsPrefix(t *testing.T) {
	got := sanitizeFTSQuery("buy AND milk")
	assert.Equal(t, "buy* milk*", got)
}

func TestSanitizeFTSQuery_EmptyInputYieldsEmptyQuery(t *testing.T) {
	assert.Equal(t, "", sanitizeFTSQuery("   "))
}
