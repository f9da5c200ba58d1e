// Package filebackend implements a transport.Backend rooted at a local
// directory: the sync document lives at <root>/data.json, and attachment
// blobs live at <root>/<key>, where keys carry their own "attachments/"
// prefix. Writes are atomic via
// temp-file-then-rename, mirroring the teacher's partial-file download
// pattern (write to a .partial sibling, rename into place on success).
package filebackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// DataFileName is the sync document's filename within root. Every writer
// uses this name.
const DataFileName = "data.json"

// LegacyDataFileName is an older document filename some installs still
// carry. Readers fall back to it only when DataFileName is absent.
const LegacyDataFileName = "mindwtr-sync.json"

// AttachmentsDirName is the attachment blob subdirectory within root.
const AttachmentsDirName = "attachments"

// Backend implements transport.Backend over a local directory tree.
type Backend struct {
	root   string
	logger *slog.Logger
}

// New builds a Backend rooted at root. root must be an absolute POSIX path;
// a "content://" URI (Android Storage Access Framework) is rejected with
// transport.ErrConfiguration — desktop/server Go has no SAF, so only the
// direct-filesystem path is supported.
func New(root string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, fmt.Errorf("file backend: %w: SYNC_PATH is empty", transport.ErrConfiguration)
	}
	if strings.HasPrefix(root, "content://") {
		return nil, fmt.Errorf("file backend: %w: content:// URIs are not supported outside Android", transport.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Join(root, AttachmentsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("file backend: creating attachments dir: %w", err)
	}
	return &Backend{root: root, logger: logger}, nil
}

func (b *Backend) dataPath() string {
	return filepath.Join(b.root, DataFileName)
}

func (b *Backend) legacyDataPath() string {
	return filepath.Join(b.root, LegacyDataFileName)
}

func (b *Backend) attachmentPath(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

// ReadJSON returns nil, nil when neither the current nor the legacy
// document filename has ever been written. Readers tolerate the legacy
// mindwtr-sync.json name (spec.md §9 open question); writers always use
// data.json.
func (b *Backend) ReadJSON(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.dataPath())
	if errors.Is(err, os.ErrNotExist) {
		legacy, legacyErr := os.ReadFile(b.legacyDataPath())
		if errors.Is(legacyErr, os.ErrNotExist) {
			return nil, nil
		}
		if legacyErr != nil {
			return nil, fmt.Errorf("file backend: reading %s: %w", LegacyDataFileName, legacyErr)
		}
		return legacy, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file backend: reading data.json: %w", err)
	}
	return data, nil
}

// WriteJSON writes data atomically via a temp file in the same directory
// followed by os.Rename, so a reader never observes a partial document.
func (b *Backend) WriteJSON(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return atomicWrite(b.dataPath(), data)
}

// GetFile reads the blob at key. progress is invoked once with the full
// size since local reads are not chunked.
func (b *Backend) GetFile(ctx context.Context, key string, progress transport.ProgressFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.attachmentPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file backend: %w: %s", transport.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("file backend: reading %s: %w", key, err)
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return data, nil
}

// PutFile writes the blob at key atomically. mimeType is accepted for
// interface parity with remote backends but unused locally.
func (b *Backend) PutFile(ctx context.Context, key, mimeType string, data []byte, progress transport.ProgressFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := b.attachmentPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("file backend: creating attachment dir: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return err
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// DeleteFile removes the blob at key. Deleting an already-absent key is
// not an error.
func (b *Backend) DeleteFile(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.attachmentPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file backend: deleting %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob is present at key.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(b.attachmentPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("file backend: statting %s: %w", key, err)
	}
	return true, nil
}

// atomicWrite writes data to a temp file beside path, then renames it into
// place so a concurrent reader never observes a torn write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.partial")
	if err != nil {
		return fmt.Errorf("file backend: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("file backend: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("file backend: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("file backend: renaming %s into place: %w", path, err)
	}
	return nil
}
