package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/mindwtr-sync/internal/config"
)

func TestConfigShow_RendersEffectiveConfig(t *testing.T) {
	cc := newTestCLIContext(t)
	cc.Config = config.DefaultConfig()

	var out bytes.Buffer
	cmd := newConfigShowCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
}

func TestConfigShow_JSONOutput(t *testing.T) {
	cc := newTestCLIContext(t)
	cc.Config = config.DefaultConfig()
	cc.JSON = true

	var out bytes.Buffer
	cmd := newConfigShowCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "SyncBackend")
}

func TestConfigSet_PersistsToFile(t *testing.T) {
	cc := newTestCLIContext(t)
	cc.ConfigPath = filepath.Join(t.TempDir(), "config.toml")

	cmd := newConfigSetCmd()
	cmd.SetContext(withCLIContext(cc))
	cmd.SetArgs([]string{"sync_path", t.TempDir()})
	require.NoError(t, cmd.Execute())

	cfg, err := config.LoadOrDefault(cc.ConfigPath, testLogger())
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.SyncPath)
}
