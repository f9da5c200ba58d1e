package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

func TestBuildBackend_Off(t *testing.T) {
	cfg := DefaultConfig()
	b, err := BuildBackend(cfg, nil, nil)
	require.NoError(t, err)

	_, err = b.ReadJSON(context.Background())
	assert.NoError(t, err)
}

func TestBuildBackend_File(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SyncBackend = BackendFile
	cfg.SyncPath = t.TempDir()

	b, err := BuildBackend(cfg, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestBuildBackend_WebDAVRequiresCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SyncBackend = BackendWebDAV
	cfg.WebDAV.URL = "https://dav.example.com"

	_, err := BuildBackend(cfg, nil, nil)
	assert.ErrorIs(t, err, transport.ErrConfiguration)
}

func TestBuildBackend_Cloud(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SyncBackend = BackendCloud
	cfg.Cloud.URL = "https://api.example.com"
	cfg.Cloud.Token = "tok"

	b, err := BuildBackend(cfg, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, b)
}
