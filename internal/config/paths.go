package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// appName names the per-user config/data/cache subdirectory on every platform.
const appName = "mindwtr-sync"

// configFileName is the TOML config file's name within DefaultConfigDir.
const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory for the config
// file. On Linux, respects XDG_CONFIG_HOME (defaults to
// ~/.config/mindwtr-sync). On macOS, uses
// ~/Library/Application Support/mindwtr-sync per Apple guidelines.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for application
// data: the SQLite store, the attachments root when SYNC_PATH is unset, and
// any File-backend target a user points at this path.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath returns the full path to the default config file, used
// as the fallback when neither MINDWTR_SYNC_CONFIG nor --config names one.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

// StorePath returns the SQLite database path within dataDir.
func StorePath(dataDir string) string {
	return filepath.Join(dataDir, "mindwtr-sync.db")
}

// AttachmentsRoot returns the local attachments root within dataDir.
func AttachmentsRoot(dataDir string) string {
	return filepath.Join(dataDir, "attachments")
}
