// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for mindwtr-sync.
package config

// SyncBackend selects which transport carries the sync document and
// attachment blobs.
type SyncBackend string

// Recognized backends. An unrecognized or empty value resolves to Off
// rather than failing, so a freshly-installed device with no configuration
// yet behaves as "sync disabled" instead of erroring on every command.
const (
	BackendOff    SyncBackend = "off"
	BackendFile   SyncBackend = "file"
	BackendWebDAV SyncBackend = "webdav"
	BackendCloud  SyncBackend = "cloud"
)

// Valid reports whether b is a recognized backend.
func (b SyncBackend) Valid() bool {
	switch b {
	case BackendOff, BackendFile, BackendWebDAV, BackendCloud:
		return true
	default:
		return false
	}
}

// WebDAVConfig configures the WebDAV backend.
type WebDAVConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// CloudConfig configures the self-hosted Cloud backend.
type CloudConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// AttachmentsConfig controls attachment lifecycle policy exposed to users.
// The per-cycle transfer caps and WebDAV rate-limit cooldown are
// deliberately not here: they are internal tuning constants, not
// user-facing policy (SPEC_FULL.md open question 3).
type AttachmentsConfig struct {
	TombstoneRetentionDays int `toml:"tombstone_retention_days"`
}

// Config is the top-level configuration structure.
type Config struct {
	SyncBackend SyncBackend `toml:"sync_backend"`
	SyncPath    string      `toml:"sync_path"`
	WebDAV      WebDAVConfig `toml:"webdav"`
	Cloud       CloudConfig  `toml:"cloud"`

	DataDir string `toml:"data_dir"`

	Logging     LoggingConfig     `toml:"logging"`
	Attachments AttachmentsConfig `toml:"attachments"`
}
