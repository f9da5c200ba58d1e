package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetKey_CreatesFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := SetKey(path, KeySyncBackend, "file")
	require.Error(t, err) // file backend requires sync_path too
	_ = cfg

	cfg, err = SetKey(path, KeySyncPath, "/mnt/sync")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/sync", cfg.SyncPath)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestSetKey_RoundTripsThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := SetKey(path, KeySyncPath, "/mnt/sync")
	require.NoError(t, err)
	_, err = SetKey(path, KeySyncBackend, "file")
	require.NoError(t, err)

	loaded, err := Load(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, BackendFile, loaded.SyncBackend)
	assert.Equal(t, "/mnt/sync", loaded.SyncPath)
}

func TestSetKey_RejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := SetKey(path, "bogus.key", "value")
	assert.Error(t, err)
}

func TestSetKey_RejectsNonPositiveRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := SetKey(path, KeyTombstoneRetentionDays, "-5")
	assert.Error(t, err)
}
