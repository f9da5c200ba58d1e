package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ParsesFileIntoDefaults(t *testing.T) {
	path := writeTestConfig(t, `
sync_backend = "file"
sync_path = "/mnt/sync"
`)
	cfg, err := Load(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.SyncBackend)
	assert.Equal(t, "/mnt/sync", cfg.SyncPath)
	assert.Equal(t, defaultLogLevel, cfg.Logging.LogLevel)
}

func TestLoadOrDefault_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SyncBackend, cfg.SyncBackend)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	path := writeTestConfig(t, `
sync_backend = "file"
sync_path = "/mnt/sync"
`)
	env := EnvOverrides{SyncPath: "/mnt/env-override"}
	cli := CLIOverrides{ConfigPath: path}

	cfg, err := Resolve(env, cli, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "/mnt/env-override", cfg.SyncPath)
}

func TestResolve_CLIOverridesEnvAndFile(t *testing.T) {
	path := writeTestConfig(t, `
sync_backend = "file"
sync_path = "/mnt/sync"
`)
	env := EnvOverrides{SyncPath: "/mnt/env-override"}
	cli := CLIOverrides{ConfigPath: path, SyncPath: "/mnt/cli-override"}

	cfg, err := Resolve(env, cli, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "/mnt/cli-override", cfg.SyncPath)
}

func TestResolve_InvalidBackendFailsValidationIsAvoidedByNormalize(t *testing.T) {
	env := EnvOverrides{SyncBackend: "not-a-backend"}
	cfg, err := Resolve(env, CLIOverrides{}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, BackendOff, cfg.SyncBackend)
}

func TestResolveConfigPath_Precedence(t *testing.T) {
	logger := slog.Default()

	assert.Equal(t, DefaultConfigPath(), ResolveConfigPath(EnvOverrides{}, CLIOverrides{}, logger))
	assert.Equal(t, "/env/path.toml", ResolveConfigPath(EnvOverrides{ConfigPath: "/env/path.toml"}, CLIOverrides{}, logger))
	assert.Equal(t, "/cli/path.toml", ResolveConfigPath(
		EnvOverrides{ConfigPath: "/env/path.toml"},
		CLIOverrides{ConfigPath: "/cli/path.toml"},
		logger,
	))
}
