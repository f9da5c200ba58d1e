// Package httpretry is the shared retry/backoff/classification loop used
// by every HTTP-based transport backend (WebDAV, Cloud). It is extracted
// from the common parts of a hand-rolled Graph API client's doRetry loop:
// exponential backoff with jitter, Retry-After honoring, and status-code
// classification into transport-neutral sentinel errors.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// Config controls the retry loop's timing. Zero-value fields fall back to
// the package defaults.
type Config struct {
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFraction float64

	// SleepFunc waits for the given duration or until ctx is canceled.
	// Defaults to a context-aware time.Sleep. Tests override this to avoid
	// real delays.
	SleepFunc func(ctx context.Context, d time.Duration) error
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 2.0
	}
	if c.JitterFraction == 0 {
		c.JitterFraction = 0.25
	}
	if c.SleepFunc == nil {
		c.SleepFunc = Sleep
	}
	return c
}

// Client executes HTTP requests with retry, backoff, and sentinel-error
// classification shared across transport backends.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// New builds a Client. httpClient defaults to http.DefaultClient; logger
// defaults to slog.Default().
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{httpClient: httpClient, cfg: cfg.withDefaults(), logger: logger}
}

// MakeRequest builds a fresh *http.Request for one attempt. It is called
// once per attempt so request bodies backed by in-memory buffers can be
// re-read from the start.
type MakeRequest func() (*http.Request, error)

// Do runs makeReq, retrying on transient network errors and retryable
// status codes, until success, retry exhaustion, or ctx cancellation. On
// success the caller owns resp.Body and must close it. A network failure
// that outlasts the retries wraps transport.ErrTransient. An HTTP error
// status yields a *transport.Error wrapping ErrAuth (401/403), ErrNotFound
// (404), ErrThrottled (429) or ErrTransient (5xx); any other status wraps a
// plain "unexpected status" error instead of a sentinel.
func (c *Client) Do(ctx context.Context, desc string, makeReq MakeRequest) (*http.Response, error) {
	var attempt int

	for {
		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("%s: building request: %w", desc, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: canceled: %w", desc, ctx.Err())
			}

			if attempt < c.cfg.MaxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("op", desc),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()))

				if sleepErr := c.cfg.SleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("%s: canceled: %w", desc, sleepErr)
				}
				attempt++
				continue
			}

			return nil, fmt.Errorf("%s: failed after %d retries: %w: %w", desc, c.cfg.MaxRetries, transport.ErrTransient, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			body = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < c.cfg.MaxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("op", desc),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff))

			if sleepErr := c.cfg.SleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("%s: canceled: %w", desc, sleepErr)
			}
			attempt++
			continue
		}

		return nil, &transport.Error{
			Backend: desc,
			Op:      "http",
			Detail:  string(body),
			Err:     classifyStatus(resp.StatusCode),
		}
	}
}

// retryBackoff honors a Retry-After header on 429 before falling back to
// the calculated exponential backoff.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return c.calcBackoff(attempt)
}

func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(c.cfg.BaseBackoff) * math.Pow(c.cfg.BackoffFactor, float64(attempt))
	if backoff > float64(c.cfg.MaxBackoff) {
		backoff = float64(c.cfg.MaxBackoff)
	}
	jitter := backoff * c.cfg.JitterFraction * (rand.Float64()*2 - 1)
	backoff += jitter
	return time.Duration(backoff)
}

func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return transport.ErrAuth
	case code == http.StatusNotFound:
		return transport.ErrNotFound
	case code == http.StatusTooManyRequests:
		return transport.ErrThrottled
	case code >= http.StatusInternalServerError:
		return transport.ErrTransient
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// Sleep waits for d or until ctx is canceled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
