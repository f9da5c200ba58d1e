package config

import "fmt"

// Validate checks that cfg carries everything its selected backend needs.
// Normalize must have already run so SyncBackend is guaranteed valid.
func Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("config: data_dir could not be resolved and none was set")
	}

	switch cfg.SyncBackend {
	case BackendFile:
		if cfg.SyncPath == "" {
			return fmt.Errorf("config: sync_backend is %q but sync_path is empty", BackendFile)
		}
	case BackendWebDAV:
		if cfg.WebDAV.URL == "" {
			return fmt.Errorf("config: sync_backend is %q but webdav.url is empty", BackendWebDAV)
		}
		if cfg.WebDAV.Username == "" || cfg.WebDAV.Password == "" {
			return fmt.Errorf("config: sync_backend is %q but webdav.username/password is empty", BackendWebDAV)
		}
	case BackendCloud:
		if cfg.Cloud.URL == "" {
			return fmt.Errorf("config: sync_backend is %q but cloud.url is empty", BackendCloud)
		}
		if cfg.Cloud.Token == "" {
			return fmt.Errorf("config: sync_backend is %q but cloud.token is empty", BackendCloud)
		}
	case BackendOff:
		// No requirements; sync is disabled.
	}

	return nil
}
