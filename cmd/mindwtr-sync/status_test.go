package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/config"
	"github.com/tonimelisma/mindwtr-sync/internal/model"
)

func TestRunStatus_NeverSynced(t *testing.T) {
	cc := newTestCLIContext(t)
	cc.Config = &config.Config{SyncBackend: config.BackendFile}

	var out bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
}

func TestRunStatus_JSONAfterSync(t *testing.T) {
	cc := newTestCLIContext(t)
	cc.Config = &config.Config{SyncBackend: config.BackendFile}
	cc.JSON = true

	data := model.Empty()
	syncedAt := model.Now()
	status := "success"
	data.Settings.LastSyncAt = &syncedAt
	data.Settings.LastSyncStatus = &status
	require.NoError(t, cc.Store.SaveAll(context.Background(), data))

	var out bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
}

func TestRunStatus_SurfacesLastError(t *testing.T) {
	cc := newTestCLIContext(t)
	cc.Config = &config.Config{SyncBackend: config.BackendWebDAV}

	data := model.Empty()
	syncedAt := model.Now()
	status := "failure"
	errMsg := "connection refused"
	data.Settings.LastSyncAt = &syncedAt
	data.Settings.LastSyncStatus = &status
	data.Settings.LastSyncError = &errMsg
	require.NoError(t, cc.Store.SaveAll(context.Background(), data))

	loaded, err := cc.Store.LoadAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded.Settings.LastSyncError)
	assert.Equal(t, "connection refused", *loaded.Settings.LastSyncError)
}
