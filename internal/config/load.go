package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values parsed from command-line flags. A nil/empty
// field means "not set on the command line"; only explicitly-set flags
// override the env/file layers beneath them.
type CLIOverrides struct {
	ConfigPath  string
	SyncBackend string
	SyncPath    string
}

// apply overlays non-empty CLI fields onto cfg. CLI flags are the
// highest-priority layer.
func (c CLIOverrides) apply(cfg *Config) {
	if c.SyncBackend != "" {
		cfg.SyncBackend = SyncBackend(c.SyncBackend)
	}
	if c.SyncPath != "" {
		cfg.SyncPath = c.SyncPath
	}
}

// Load reads and parses the TOML config file at path, validates it, and
// returns the result. Unset fields retain DefaultConfig's values because
// decoding targets a struct that was pre-populated with defaults.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", slog.String("path", path))

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	Normalize(cfg, logger)

	logger.Debug("config file parsed", slog.String("path", path), slog.String("backend", string(cfg.SyncBackend)))
	return cfg, nil
}

// LoadOrDefault reads path if it exists, otherwise returns DefaultConfig.
// This is what lets a freshly-installed device run every command before
// any config file has ever been written.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", slog.String("path", path))
		return DefaultConfig(), nil
	}
	return Load(path, logger)
}

// Resolve applies the four-layer override chain: default -> config file ->
// environment -> CLI flag, in that order, and validates the result.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Config, error) {
	path := ResolveConfigPath(env, cli, logger)

	cfg, err := LoadOrDefault(path, logger)
	if err != nil {
		return nil, err
	}

	env.apply(cfg)
	cli.apply(cfg)
	Normalize(cfg, logger)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	logger.Debug("config resolved",
		slog.String("backend", string(cfg.SyncBackend)),
		slog.String("data_dir", cfg.DataDir),
	)
	return cfg, nil
}

// ResolveConfigPath determines the config file path: CLI flag > environment
// variable > platform default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) string {
	path := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		path = env.ConfigPath
		source = "env"
	}
	if cli.ConfigPath != "" {
		path = cli.ConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", slog.String("path", path), slog.String("source", source))
	return path
}

// Normalize fills in derived/fallback values: an unrecognized or empty
// SyncBackend becomes BackendOff (SPEC_FULL.md: "invalid -> off") rather
// than a validation error, and an empty DataDir falls back to the platform
// default.
func Normalize(cfg *Config, logger *slog.Logger) {
	if !cfg.SyncBackend.Valid() {
		if cfg.SyncBackend != "" {
			logger.Warn("unrecognized sync_backend, disabling sync", slog.String("value", string(cfg.SyncBackend)))
		}
		cfg.SyncBackend = BackendOff
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.Attachments.TombstoneRetentionDays <= 0 {
		cfg.Attachments.TombstoneRetentionDays = defaultTombstoneRetentionDays
	}
}
