// Package cloud implements transport.Backend against a self-hosted HTTP
// endpoint authenticated with a static bearer token. There is no token
// refresh flow — an admin-issued token is either valid or it isn't — so
// this backend has no OAuth2 dependency.
package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
	"github.com/tonimelisma/mindwtr-sync/internal/transport/httpretry"
)

// Config configures a Cloud backend.
type Config struct {
	URL   string
	Token string
}

// Backend implements transport.Backend against a self-hosted cloud endpoint.
type Backend struct {
	baseURL string
	token   string
	retry   *httpretry.Client
	logger  *slog.Logger
}

// New validates cfg and builds a Backend. The base URL is canonicalized by
// stripping a trailing "/data" segment so per-attachment paths append
// cleanly.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("cloud backend: %w: CLOUD_URL is empty", transport.ErrConfiguration)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("cloud backend: %w: CLOUD_TOKEN is empty", transport.ErrConfiguration)
	}

	base := strings.TrimRight(cfg.URL, "/")
	base = strings.TrimSuffix(base, "/data")

	return &Backend{
		baseURL: base,
		token:   cfg.Token,
		retry:   httpretry.New(httpClient, httpretry.Config{}, logger),
		logger:  logger,
	}, nil
}

func (b *Backend) url(path string) string {
	return b.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (b *Backend) authenticatedRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	return req, nil
}

// legacyDocumentPath is an older document route some installs still serve.
// ReadJSON falls back to it only when the current route 404s; writers always
// use "data".
const legacyDocumentPath = "legacy-data"

// ReadJSON fetches the sync document, falling back to the legacy route when
// the current one is absent.
func (b *Backend) ReadJSON(ctx context.Context) ([]byte, error) {
	data, err := b.readDocument(ctx, "data")
	if err != nil {
		return nil, err
	}
	if data != nil {
		return data, nil
	}
	return b.readDocument(ctx, legacyDocumentPath)
}

func (b *Backend) readDocument(ctx context.Context, path string) ([]byte, error) {
	resp, err := b.retry.Do(ctx, "cloud read "+path, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// WriteJSON PUTs the document.
func (b *Backend) WriteJSON(ctx context.Context, data []byte) error {
	_, err := b.retry.Do(ctx, "cloud write data.json", func() (*http.Request, error) {
		req, err := b.authenticatedRequest(ctx, http.MethodPut, "data", data)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	return err
}

// GetFile downloads the blob at key.
func (b *Backend) GetFile(ctx context.Context, key string, progress transport.ProgressFunc) ([]byte, error) {
	resp, err := b.retry.Do(ctx, "cloud get "+key, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodGet, key, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading %s body: %w", key, err)
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return data, nil
}

// PutFile uploads the blob at key.
func (b *Backend) PutFile(ctx context.Context, key, mimeType string, data []byte, progress transport.ProgressFunc) error {
	_, err := b.retry.Do(ctx, "cloud put "+key, func() (*http.Request, error) {
		req, err := b.authenticatedRequest(ctx, http.MethodPut, key, data)
		if err != nil {
			return nil, err
		}
		if mimeType != "" {
			req.Header.Set("Content-Type", mimeType)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// DeleteFile removes the blob at key. Idempotent.
func (b *Backend) DeleteFile(ctx context.Context, key string) error {
	_, err := b.retry.Do(ctx, "cloud delete "+key, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodDelete, key, nil)
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// Exists issues a HEAD request to check for the resource's presence.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := b.retry.Do(ctx, "cloud head "+key, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodHead, key, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, transport.ErrNotFound)
}
