package syncengine

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// fakeBackend is an in-memory transport.Backend for orchestrator tests,
// grounded on the teacher's practice of stubbing transport-shaped
// dependencies (stubTokenSource in internal/sync/orchestrator_test.go)
// rather than spinning up a real network stack for coordination tests.
type fakeBackend struct {
	mu   sync.Mutex
	doc  []byte
	docSet bool
	files map[string][]byte

	readErr  error
	writeErr error

	readCalls  int
	writeCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{files: make(map[string][]byte)}
}

func (b *fakeBackend) ReadJSON(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readCalls++
	if b.readErr != nil {
		return nil, b.readErr
	}
	if !b.docSet {
		return nil, nil
	}
	return append([]byte(nil), b.doc...), nil
}

func (b *fakeBackend) WriteJSON(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeCalls++
	if b.writeErr != nil {
		return b.writeErr
	}
	b.doc = append([]byte(nil), data...)
	b.docSet = true
	return nil
}

func (b *fakeBackend) GetFile(_ context.Context, key string, _ transport.ProgressFunc) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[key]
	if !ok {
		return nil, transport.ErrNotFound
	}
	return data, nil
}

func (b *fakeBackend) PutFile(_ context.Context, key, _ string, data []byte, _ transport.ProgressFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[key] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBackend) DeleteFile(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, key)
	return nil
}

func (b *fakeBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[key]
	return ok, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
