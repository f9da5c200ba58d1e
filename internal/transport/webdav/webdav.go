// Package webdav implements transport.Backend against a WebDAV collection
// over HTTP Basic auth. No third-party WebDAV client is used: this is
// hand-rolled directly on net/http, in the same style as a hand-rolled
// Graph API client, sharing the httpretry retry/backoff loop.
package webdav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
	"github.com/tonimelisma/mindwtr-sync/internal/transport/httpretry"
)

// MinRequestInterval is the minimum spacing between requests to a WebDAV
// collection, enforced via a request-rate limiter (the same
// golang.org/x/time/rate library used elsewhere for byte-rate limiting,
// repurposed here for request-rate limiting).
const MinRequestInterval = 400 * time.Millisecond

// RateLimitCooldown is how long the backend stays in cooldown after a
// detected rate-limit (429) response, mirroring the teacher's per-path
// failure-cooldown shape but applied backend-wide since WebDAV throttling
// is collection-scoped, not path-scoped. During the cooldown ReadJSON,
// WriteJSON, GetFile and PutFile fail fast with transport.ErrThrottled;
// DeleteFile and Exists are not held back.
const RateLimitCooldown = 60 * time.Second

// Config configures a WebDAV backend.
type Config struct {
	URL      string
	Username string
	Password string
}

// Backend implements transport.Backend against a WebDAV collection.
type Backend struct {
	baseURL  string
	username string
	password string

	retry   *httpretry.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
}

// New validates cfg and builds a Backend. Returns transport.ErrConfiguration
// if the URL, username, or password is missing.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav backend: %w: WEBDAV_URL is empty", transport.ErrConfiguration)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("webdav backend: %w: WEBDAV_USERNAME/WEBDAV_PASSWORD required", transport.ErrConfiguration)
	}

	return &Backend{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		retry:    httpretry.New(httpClient, httpretry.Config{}, logger),
		limiter:  rate.NewLimiter(rate.Every(MinRequestInterval), 1),
		logger:   logger,
	}, nil
}

func (b *Backend) url(path string) string {
	return b.baseURL + "/" + strings.TrimLeft(path, "/")
}

// throttled reports whether the backend-wide rate-limit cooldown is active.
func (b *Backend) throttled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.cooldownUntil)
}

func (b *Backend) startCooldown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooldownUntil = time.Now().Add(RateLimitCooldown)
}

func (b *Backend) wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
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
	req.SetBasicAuth(b.username, b.password)
	return req, nil
}

// legacyDataFileName is an older document filename some installs still
// carry. ReadJSON falls back to it only when data.json is absent; writers
// always use data.json.
const legacyDataFileName = "mindwtr-sync.json"

// ReadJSON fetches data.json, falling back to the legacy
// mindwtr-sync.json name when it's absent. A 404 on both means the remote
// is authoritatively empty.
func (b *Backend) ReadJSON(ctx context.Context) ([]byte, error) {
	data, err := b.readDocument(ctx, "data.json")
	if err != nil {
		return nil, err
	}
	if data != nil {
		return data, nil
	}
	return b.readDocument(ctx, legacyDataFileName)
}

func (b *Backend) readDocument(ctx context.Context, name string) ([]byte, error) {
	if b.throttled() {
		return nil, fmt.Errorf("webdav: %w: in rate-limit cooldown", transport.ErrThrottled)
	}
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := b.retry.Do(ctx, "webdav read "+name, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodGet, name, nil)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		b.noteThrottle(err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webdav: reading %s body: %w", name, err)
	}
	return data, nil
}

// WriteJSON PUTs the document. A single PUT is atomic from a WebDAV
// reader's perspective per RFC 4918.
func (b *Backend) WriteJSON(ctx context.Context, data []byte) error {
	if b.throttled() {
		return fmt.Errorf("webdav: %w: in rate-limit cooldown", transport.ErrThrottled)
	}
	if err := b.wait(ctx); err != nil {
		return err
	}

	_, err := b.retry.Do(ctx, "webdav write data.json", func() (*http.Request, error) {
		req, err := b.authenticatedRequest(ctx, http.MethodPut, "data.json", data)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		b.noteThrottle(err)
		return err
	}
	return nil
}

// GetFile downloads the blob at key.
func (b *Backend) GetFile(ctx context.Context, key string, progress transport.ProgressFunc) ([]byte, error) {
	if b.throttled() {
		return nil, fmt.Errorf("webdav: %w: in rate-limit cooldown", transport.ErrThrottled)
	}
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := b.retry.Do(ctx, "webdav get "+key, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodGet, key, nil)
	})
	if err != nil {
		b.noteThrottle(err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webdav: reading %s body: %w", key, err)
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return data, nil
}

// PutFile uploads the blob at key.
func (b *Backend) PutFile(ctx context.Context, key, mimeType string, data []byte, progress transport.ProgressFunc) error {
	if b.throttled() {
		return fmt.Errorf("webdav: %w: in rate-limit cooldown", transport.ErrThrottled)
	}
	if err := b.wait(ctx); err != nil {
		return err
	}

	_, err := b.retry.Do(ctx, "webdav put "+key, func() (*http.Request, error) {
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
		b.noteThrottle(err)
		return err
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return nil
}

// DeleteFile removes the blob at key. A 404 response is treated as success
// since deletion is idempotent.
func (b *Backend) DeleteFile(ctx context.Context, key string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	_, err := b.retry.Do(ctx, "webdav delete "+key, func() (*http.Request, error) {
		return b.authenticatedRequest(ctx, http.MethodDelete, key, nil)
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// Exists issues a PROPFIND with Depth: 0 to check for the resource's
// presence without transferring its body.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	if err := b.wait(ctx); err != nil {
		return false, err
	}

	resp, err := b.retry.Do(ctx, "webdav propfind "+key, func() (*http.Request, error) {
		req, err := b.authenticatedRequest(ctx, "PROPFIND", key, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Depth", "0")
		return req, nil
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

func (b *Backend) noteThrottle(err error) {
	if errors.Is(err, transport.ErrThrottled) {
		b.startCooldown()
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, transport.ErrNotFound)
}
