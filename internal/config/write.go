package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// configFilePermissions restricts the config file to the owning user, since
// it may carry a webdav password or cloud token.
const configFilePermissions = 0o600

// configDirPermissions is the mode used when creating the config directory.
const configDirPermissions = 0o700

// recognized config keys accepted by SetKey, matching the TOML tag names.
const (
	KeySyncBackend            = "sync_backend"
	KeySyncPath               = "sync_path"
	KeyWebDAVURL              = "webdav.url"
	KeyWebDAVUsername         = "webdav.username"
	KeyWebDAVPassword         = "webdav.password"
	KeyCloudURL               = "cloud.url"
	KeyCloudToken             = "cloud.token"
	KeyDataDir                = "data_dir"
	KeyLogLevel               = "logging.log_level"
	KeyTombstoneRetentionDays = "attachments.tombstone_retention_days"
)

// SetKey loads the config file at path (or starts from defaults if it does
// not exist yet), applies a single key/value change, validates the result,
// and writes the whole document back out atomically. Unlike the teacher's
// line-based drive-section editor, this config has no repeated sections to
// preserve verbatim, so a full struct round-trip through the TOML encoder
// is simpler and just as safe.
func SetKey(path, key, value string) (*Config, error) {
	cfg, err := loadRawOrDefault(path)
	if err != nil {
		return nil, err
	}

	if err := applyKey(cfg, key, value); err != nil {
		return nil, err
	}

	if cfg.Attachments.TombstoneRetentionDays <= 0 {
		cfg.Attachments.TombstoneRetentionDays = defaultTombstoneRetentionDays
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if err := Save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRawOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func applyKey(cfg *Config, key, value string) error {
	switch key {
	case KeySyncBackend:
		cfg.SyncBackend = SyncBackend(value)
	case KeySyncPath:
		cfg.SyncPath = value
	case KeyWebDAVURL:
		cfg.WebDAV.URL = value
	case KeyWebDAVUsername:
		cfg.WebDAV.Username = value
	case KeyWebDAVPassword:
		cfg.WebDAV.Password = value
	case KeyCloudURL:
		cfg.Cloud.URL = value
	case KeyCloudToken:
		cfg.Cloud.Token = value
	case KeyDataDir:
		cfg.DataDir = value
	case KeyLogLevel:
		cfg.Logging.LogLevel = value
	case KeyTombstoneRetentionDays:
		n, err := parsePositiveInt(value)
		if err != nil {
			return fmt.Errorf("config: %s must be a positive integer: %w", key, err)
		}
		cfg.Attachments.TombstoneRetentionDays = n
	default:
		return fmt.Errorf("config: unrecognized key %q", key)
	}
	return nil
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value %q is not positive", s)
	}
	return n, nil
}

// Save marshals cfg as TOML and writes it to path atomically (temp file in
// the same directory, fsync, rename), grounded on the teacher's
// atomicWriteFile helper.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return atomicWriteFile(path, buf.Bytes())
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}
	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("config: writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("config: syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("config: closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("config: setting permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("config: renaming into place: %w", err)
	}

	succeeded = true
	return nil
}
