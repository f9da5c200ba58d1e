package transport

import (
	"context"
	"fmt"
)

// Off is the no-op backend used when SYNC_BACKEND is unset, invalid, or
// explicitly "off". ReadJSON reports the remote as authoritatively empty;
// every write is rejected.
type Off struct{}

// NewOff builds the no-op backend. It takes no configuration because it
// has none to validate.
func NewOff() Off { return Off{} }

// ReadJSON always returns (nil, nil): no remote document exists.
func (Off) ReadJSON(ctx context.Context) ([]byte, error) { return nil, nil }

// WriteJSON always fails: there is nowhere to write to.
func (Off) WriteJSON(ctx context.Context, data []byte) error {
	return fmt.Errorf("off backend: %w: sync is disabled", ErrUnsupported)
}

// GetFile always fails.
func (Off) GetFile(ctx context.Context, key string, progress ProgressFunc) ([]byte, error) {
	return nil, fmt.Errorf("off backend: %w: sync is disabled", ErrUnsupported)
}

// PutFile always fails.
func (Off) PutFile(ctx context.Context, key, mimeType string, data []byte, progress ProgressFunc) error {
	return fmt.Errorf("off backend: %w: sync is disabled", ErrUnsupported)
}

// DeleteFile always fails.
func (Off) DeleteFile(ctx context.Context, key string) error {
	return fmt.Errorf("off backend: %w: sync is disabled", ErrUnsupported)
}

// Exists always reports false.
func (Off) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
