package config

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
	"github.com/tonimelisma/mindwtr-sync/internal/transport/cloud"
	"github.com/tonimelisma/mindwtr-sync/internal/transport/filebackend"
	"github.com/tonimelisma/mindwtr-sync/internal/transport/webdav"
)

// BuildBackend constructs the transport.Backend named by cfg.SyncBackend,
// eliminating the per-command boilerplate of switching on backend kind —
// the same role newGraphClient plays for the teacher's single Graph API
// client.
func BuildBackend(cfg *Config, httpClient *http.Client, logger *slog.Logger) (transport.Backend, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}

	switch cfg.SyncBackend {
	case BackendOff, "":
		return transport.NewOff(), nil
	case BackendFile:
		return filebackend.New(cfg.SyncPath, logger)
	case BackendWebDAV:
		return webdav.New(webdav.Config{
			URL:      cfg.WebDAV.URL,
			Username: cfg.WebDAV.Username,
			Password: cfg.WebDAV.Password,
		}, httpClient, logger)
	case BackendCloud:
		return cloud.New(cloud.Config{
			URL:   cfg.Cloud.URL,
			Token: cfg.Cloud.Token,
		}, httpClient, logger)
	default:
		return nil, fmt.Errorf("config: %w: unrecognized sync_backend %q", transport.ErrConfiguration, cfg.SyncBackend)
	}
}
