package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func ts(offset time.Duration) model.Timestamp {
	return model.TimestampFromTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset))
}

func TestMerge_OnlyOneSideHasEntity(t *testing.T) {
	local := model.Empty()
	local.Tasks = []*model.Task{taskWithID("a", ts(0), ts(0))}
	remote := model.Empty()

	result, err := Merge(local, remote)
	require.NoError(t, err)
	assert.Len(t, result.Data.Tasks, 1)
	assert.Equal(t, "a", result.Data.Tasks[0].ID)
	assert.Equal(t, StatusSuccess, result.Status)
}

func TestMerge_TombstoneWins(t *testing.T) {
	local := model.Empty()
	localTask := taskWithID("a", ts(0), ts(time.Hour))
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", ts(0), ts(2*time.Hour))
	deletedAt := ts(90 * time.Minute)
	remoteTask.DeletedAt = &deletedAt
	remote.Tasks = []*model.Task{remoteTask}

	result, err := Merge(local, remote)
	require.NoError(t, err)
	require.Len(t, result.Data.Tasks, 1)
	assert.NotNil(t, result.Data.Tasks[0].DeletedAt)
	assert.Equal(t, deletedAt, *result.Data.Tasks[0].DeletedAt)
}

func TestMerge_TombstoneDominance_EarliestWins(t *testing.T) {
	local := model.Empty()
	localTask := taskWithID("a", ts(0), ts(0))
	localDeleted := ts(time.Hour)
	localTask.DeletedAt = &localDeleted
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", ts(0), ts(0))
	remoteDeleted := ts(30 * time.Minute)
	remoteTask.DeletedAt = &remoteDeleted
	remote.Tasks = []*model.Task{remoteTask}

	result, err := Merge(local, remote)
	require.NoError(t, err)
	require.Len(t, result.Data.Tasks, 1)
	assert.Equal(t, remoteDeleted, *result.Data.Tasks[0].DeletedAt)
}

func TestMerge_LastWriterWins(t *testing.T) {
	local := model.Empty()
	localTask := taskWithID("a", ts(0), ts(time.Hour))
	localTask.Title = "local title"
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", ts(0), ts(2*time.Hour))
	remoteTask.Title = "remote title"
	remote.Tasks = []*model.Task{remoteTask}

	result, err := Merge(local, remote)
	require.NoError(t, err)
	require.Len(t, result.Data.Tasks, 1)
	assert.Equal(t, "remote title", result.Data.Tasks[0].Title)
}

func TestMerge_ConflictDetectedWithinSkewWindow(t *testing.T) {
	local := model.Empty()
	localTask := taskWithID("a", ts(0), ts(time.Hour))
	localTask.Title = "local title"
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", ts(0), ts(time.Hour+10*time.Second))
	remoteTask.Title = "remote title"
	remote.Tasks = []*model.Task{remoteTask}

	result, err := Merge(local, remote)
	require.NoError(t, err)
	assert.Equal(t, StatusConflict, result.Status)
	assert.Equal(t, 1, result.Stats.Tasks.Conflicts)
	assert.Contains(t, result.Stats.Tasks.ConflictIDs, "a")
}

func TestMerge_NoConflictWhenFieldsIdentical(t *testing.T) {
	local := model.Empty()
	localTask := taskWithID("a", ts(0), ts(time.Hour))
	localTask.Title = "same"
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", ts(0), ts(time.Hour+5*time.Second))
	remoteTask.Title = "same"
	remote.Tasks = []*model.Task{remoteTask}

	result, err := Merge(local, remote)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 0, result.Stats.Tasks.Conflicts)
}

func TestMerge_ClockSkewRepair(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	local := model.Empty()
	localTask := taskWithID("a", model.TimestampFromTime(now), model.TimestampFromTime(now.Add(-time.Hour)))
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", model.TimestampFromTime(now), model.TimestampFromTime(now.Add(time.Hour)))
	remote.Tasks = []*model.Task{remoteTask}

	result, err := MergeWithOptions(local, remote, Options{Now: func() time.Time { return now }})
	require.NoError(t, err)
	require.Len(t, result.Data.Tasks, 1)
	assert.LessOrEqual(t, int64(result.Data.Tasks[0].UpdatedAt), now.Add(SkewThreshold).UnixNano())
	assert.Equal(t, 1, result.Stats.Tasks.TimestampAdjustments)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	local := model.Empty()
	localTask := taskWithID("a", ts(0), ts(time.Hour))
	local.Tasks = []*model.Task{localTask}

	remote := model.Empty()
	remoteTask := taskWithID("a", ts(0), ts(2*time.Hour))
	remote.Tasks = []*model.Task{remoteTask}

	originalLocalUpdatedAt := localTask.UpdatedAt

	_, err := Merge(local, remote)
	require.NoError(t, err)
	assert.Equal(t, originalLocalUpdatedAt, localTask.UpdatedAt)
}

func TestMerge_Idempotent(t *testing.T) {
	local := model.Empty()
	local.Tasks = []*model.Task{taskWithID("a", ts(0), ts(0))}
	remote := model.Empty()
	remote.Tasks = []*model.Task{taskWithID("a", ts(0), ts(0))}

	first, err := Merge(local, remote)
	require.NoError(t, err)

	second, err := Merge(first.Data, first.Data)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stats.TotalConflicts())
}

func TestMerge_Commutative(t *testing.T) {
	a := model.Empty()
	a.Tasks = []*model.Task{taskWithID("a", ts(0), ts(time.Hour))}

	b := model.Empty()
	b.Tasks = []*model.Task{taskWithID("b", ts(0), ts(time.Hour))}

	ab, err := Merge(a, b)
	require.NoError(t, err)
	ba, err := Merge(b, a)
	require.NoError(t, err)

	assert.Equal(t, len(ab.Data.Tasks), len(ba.Data.Tasks))
}

func TestMergeAttachments_PrefersNonEmptyCloudKey(t *testing.T) {
	local := []model.Attachment{{ID: "att1", UpdatedAt: ts(0), CloudKey: "attachments/att1.pdf"}}
	remote := []model.Attachment{{ID: "att1", UpdatedAt: ts(time.Minute)}}

	merged := mergeAttachments(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "attachments/att1.pdf", merged[0].CloudKey)
}

func TestMerge_RecordsMaxClockSkewOutsideConflictWindow(t *testing.T) {
	local := model.Empty()
	local.Tasks = []*model.Task{taskWithID("a", ts(0), ts(0))}
	remote := model.Empty()
	remote.Tasks = []*model.Task{taskWithID("a", ts(0), ts(5*time.Minute))}

	result, err := Merge(local, remote)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Tasks.Conflicts)
	assert.Equal(t, int64(5*time.Minute/time.Millisecond), result.Stats.Tasks.MaxClockSkewMs)
}

// taskWithID builds a minimal task with the given audit fields, used to
// avoid the ceremony of model.Task{audit: model.audit{...}} (audit is
// unexported outside the model package).
func taskWithID(id string, createdAt, updatedAt model.Timestamp) *model.Task {
	task := &model.Task{}
	task.ID = id
	task.CreatedAt = createdAt
	task.UpdatedAt = updatedAt
	task.Status = model.TaskStatusNext
	return task
}
