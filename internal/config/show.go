package config

import (
	"fmt"
	"io"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// RenderEffective writes cfg as a human-readable, credential-redacted
// summary to w. This powers "mindwtr-sync config show": webdav.password and
// cloud.token are replaced by a redaction placeholder, and userinfo in the
// webdav and cloud URLs is stripped by internal/transport's SanitizeURL,
// before anything reaches a terminal.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("sync_backend = %q\n", cfg.SyncBackend)
	ew.printf("data_dir     = %q\n", cfg.DataDir)
	ew.printf("\n")

	switch cfg.SyncBackend {
	case BackendFile:
		ew.printf("[file]\n")
		ew.printf("  sync_path = %q\n", cfg.SyncPath)
	case BackendWebDAV:
		ew.printf("[webdav]\n")
		ew.printf("  url      = %q\n", transport.SanitizeURL(cfg.WebDAV.URL))
		ew.printf("  username = %q\n", cfg.WebDAV.Username)
		ew.printf("  password = %q\n", redact(cfg.WebDAV.Password))
	case BackendCloud:
		ew.printf("[cloud]\n")
		ew.printf("  url   = %q\n", transport.SanitizeURL(cfg.Cloud.URL))
		ew.printf("  token = %q\n", redact(cfg.Cloud.Token))
	}
	ew.printf("\n")

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", cfg.Logging.LogLevel)
	ew.printf("  log_format = %q\n", cfg.Logging.LogFormat)
	ew.printf("\n")

	ew.printf("[attachments]\n")
	ew.printf("  tombstone_retention_days = %d\n", cfg.Attachments.TombstoneRetentionDays)

	return ew.err
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "<redacted>"
}

// errWriter wraps an io.Writer and captures the first write error, so
// callers can chain printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
