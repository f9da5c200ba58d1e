package config

// Default values for configuration options, the "layer 0" of the
// default -> file -> env -> CLI override chain.
const (
	defaultLogLevel               = "info"
	defaultLogFormat              = "auto"
	defaultTombstoneRetentionDays = 90
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding (so unset fields keep their
// defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		SyncBackend: BackendOff,
		DataDir:     DefaultDataDir(),
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Attachments: AttachmentsConfig{
			TombstoneRetentionDays: defaultTombstoneRetentionDays,
		},
	}
}
