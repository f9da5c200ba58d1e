package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
	"github.com/tonimelisma/mindwtr-sync/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCLIContext(t *testing.T) *CLIContext {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &CLIContext{
		Config: nil,
		Logger: testLogger(),
		Store:  st,
	}
}

func withCLIContext(cc *CLIContext) context.Context {
	return context.WithValue(context.Background(), cliContextKey{}, cc)
}

func TestTaskAdd_CreatesInboxTask(t *testing.T) {
	cc := newTestCLIContext(t)
	cmd := newTaskAddCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetArgs([]string{"write the quarterly report"})
	require.NoError(t, cmd.Execute())

	data, err := cc.Store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, data.Tasks, 1)
	assert.Equal(t, "write the quarterly report", data.Tasks[0].Title)
	assert.Equal(t, model.TaskStatusInbox, data.Tasks[0].Status)
	assert.NotEmpty(t, data.Tasks[0].ID)
}

func TestTaskList_OmitsDeletedDoneAndArchived(t *testing.T) {
	cc := newTestCLIContext(t)

	done := &model.Task{Title: "done task", Status: model.TaskStatusDone}
	done.ID = "t-done"
	archived := &model.Task{Title: "archived task", Status: model.TaskStatusArchived}
	archived.ID = "t-archived"
	deletedAt := model.TimestampFromTime(model.Now().Time())
	deleted := &model.Task{Title: "deleted task", Status: model.TaskStatusInbox}
	deleted.ID = "t-deleted"
	deleted.DeletedAt = &deletedAt
	live := &model.Task{Title: "live task", Status: model.TaskStatusInbox}
	live.ID = "t-live"

	data := model.Empty()
	data.Tasks = append(data.Tasks, done, archived, deleted, live)
	require.NoError(t, cc.Store.SaveAll(context.Background(), data))

	var out bytes.Buffer
	cmd := newTaskListCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
}

func TestTaskSearch_FindsByTitle(t *testing.T) {
	cc := newTestCLIContext(t)

	task := &model.Task{Title: "reconcile the ledger", Status: model.TaskStatusInbox}
	task.ID = "t-ledger"
	now := model.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	data := model.Empty()
	data.Tasks = append(data.Tasks, task)
	require.NoError(t, cc.Store.SaveAll(context.Background(), data))

	cmd := newTaskSearchCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetArgs([]string{"ledger"})
	require.NoError(t, cmd.Execute())
}
