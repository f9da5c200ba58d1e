package attach

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// memBackend is an in-memory transport.Backend stand-in so attach tests
// never touch the filesystem through a real backend.
type memBackend struct {
	blobs map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{blobs: make(map[string][]byte)} }

func (m *memBackend) ReadJSON(context.Context) ([]byte, error) { return nil, nil }
func (m *memBackend) WriteJSON(context.Context, []byte) error  { return nil }

func (m *memBackend) GetFile(_ context.Context, key string, _ transport.ProgressFunc) ([]byte, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("membackend: %s: %w", key, transport.ErrNotFound)
	}
	return data, nil
}

func (m *memBackend) PutFile(_ context.Context, key, _ string, data []byte, _ transport.ProgressFunc) error {
	cp := append([]byte(nil), data...)
	m.blobs[key] = cp
	return nil
}

func (m *memBackend) DeleteFile(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *memBackend) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func taskWithAttachment(a model.Attachment) *model.Task {
	t := &model.Task{Title: "t"}
	t.SetAttachments([]model.Attachment{a})
	return t
}

func TestPreSyncPass_UploadsNewLocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "attachments"), 0o755))
	localPath := filepath.Join(dir, "attachments", "a1.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("hello"), 0o644))

	backend := newMemBackend()
	eng := New(dir, backend, nil)

	data := model.Empty()
	data.Tasks = append(data.Tasks, taskWithAttachment(model.Attachment{
		ID:    "a1",
		Kind:  model.AttachmentKindFile,
		URI:   "attachments/a1.txt",
		Title: "a1.txt",
	}))

	out, err := eng.PreSyncPass(context.Background(), data)
	require.NoError(t, err)

	got := out.Tasks[0].Attachments[0]
	assert.Equal(t, "attachments/a1.txt", got.CloudKey)
	assert.Equal(t, model.AttachmentAvailable, got.LocalStatus)
	assert.NotEmpty(t, got.FileHash)
	_, ok := backend.blobs["attachments/a1.txt"]
	assert.True(t, ok)
}

func TestPreSyncPass_ClearsCloudKeyWhenRemoteMissing(t *testing.T) {
	dir := t.TempDir()
	backend := newMemBackend()
	eng := New(dir, backend, nil)

	data := model.Empty()
	data.Tasks = append(data.Tasks, taskWithAttachment(model.Attachment{
		ID:       "a1",
		Kind:     model.AttachmentKindFile,
		URI:      "attachments/missing.txt",
		CloudKey: "attachments/a1.stale",
	}))

	out, err := eng.PreSyncPass(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, out.Tasks[0].Attachments[0].CloudKey)
}

func TestPostMergePass_DownloadsAndVerifiesHash(t *testing.T) {
	dir := t.TempDir()
	backend := newMemBackend()
	backend.blobs["attachments/a1.txt"] = []byte("hello")
	eng := New(dir, backend, nil)

	data := model.Empty()
	data.Tasks = append(data.Tasks, taskWithAttachment(model.Attachment{
		ID:       "a1",
		Kind:     model.AttachmentKindFile,
		URI:      "attachments/a1.txt",
		CloudKey: "attachments/a1.txt",
		FileHash: ComputeBytesHash([]byte("hello")),
	}))

	err := eng.PostMergePass(context.Background(), data)
	require.NoError(t, err)

	got := data.Tasks[0].Attachments[0]
	assert.Equal(t, model.AttachmentAvailable, got.LocalStatus)
	raw, readErr := os.ReadFile(filepath.Join(dir, "attachments", "a1.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "hello", string(raw))
}

func TestPostMergePass_HashMismatchMarksMissing(t *testing.T) {
	dir := t.TempDir()
	backend := newMemBackend()
	backend.blobs["attachments/a1.txt"] = []byte("tampered")
	eng := New(dir, backend, nil)

	data := model.Empty()
	data.Tasks = append(data.Tasks, taskWithAttachment(model.Attachment{
		ID:       "a1",
		Kind:     model.AttachmentKindFile,
		URI:      "attachments/a1.txt",
		CloudKey: "attachments/a1.txt",
		FileHash: ComputeBytesHash([]byte("hello")),
	}))

	err := eng.PostMergePass(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, model.AttachmentMissing, data.Tasks[0].Attachments[0].LocalStatus)
}

func TestResolveWithinRoot_RejectsEscape(t *testing.T) {
	_, err := resolveWithinRoot("/sync/attachments", "../../etc/passwd")
	assert.Error(t, err)
}

func TestResolveWithinRoot_AllowsNested(t *testing.T) {
	got, err := resolveWithinRoot("/sync", "attachments/a1.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/sync/attachments/a1.txt"), got)
}

func TestOrphanGC_RemovesUnreferencedBlob(t *testing.T) {
	dir := t.TempDir()
	attachDir := filepath.Join(dir, "attachments")
	require.NoError(t, os.MkdirAll(attachDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(attachDir, "orphan.txt"), []byte("x"), 0o644))

	backend := newMemBackend()
	eng := New(dir, backend, nil)

	data := model.Empty()
	ran, err := eng.OrphanGC(context.Background(), data, time.Now())
	require.NoError(t, err)
	assert.True(t, ran)

	_, statErr := os.Stat(filepath.Join(attachDir, "orphan.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrphanGC_RespectsInterval(t *testing.T) {
	dir := t.TempDir()
	backend := newMemBackend()
	eng := New(dir, backend, nil)

	now := time.Now()
	data := model.Empty()
	data.Settings.Attachments.LastCleanupAt = model.TimestampFromTime(now)

	ran, err := eng.OrphanGC(context.Background(), data, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestOrphanGC_DeletesTombstonedAttachment(t *testing.T) {
	dir := t.TempDir()
	attachDir := filepath.Join(dir, "attachments")
	require.NoError(t, os.MkdirAll(attachDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(attachDir, "a1.txt"), []byte("x"), 0o644))

	backend := newMemBackend()
	backend.blobs["attachments/a1.txt"] = []byte("x")
	eng := New(dir, backend, nil)

	deletedAt := int64(1)
	data := model.Empty()
	data.Tasks = append(data.Tasks, taskWithAttachment(model.Attachment{
		ID:        "a1",
		Kind:      model.AttachmentKindFile,
		URI:       "attachments/a1.txt",
		CloudKey:  "attachments/a1.txt",
		DeletedAt: func() *model.Timestamp { v := model.Timestamp(deletedAt); return &v }(),
	}))

	ran, err := eng.OrphanGC(context.Background(), data, time.Now())
	require.NoError(t, err)
	assert.True(t, ran)

	_, statErr := os.Stat(filepath.Join(attachDir, "a1.txt"))
	assert.True(t, os.IsNotExist(statErr))
	_, ok := backend.blobs["attachments/a1.txt"]
	assert.False(t, ok)
}
