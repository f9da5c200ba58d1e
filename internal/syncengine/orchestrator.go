// Package syncengine drives one sync cycle at a time: it owns the
// single-flight coordination, the freshness guard, and the glue between
// the store, the merger, the transport backend, and the attachment engine.
package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/mindwtr-sync/internal/attach"
	"github.com/tonimelisma/mindwtr-sync/internal/config"
	"github.com/tonimelisma/mindwtr-sync/internal/store"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

// maxUploadFileSize bounds uploads for backends where size matters.
// The File backend is unconfigurable/unlimited (0); WebDAV and Cloud share
// a conservative cap since neither exposes per-request streaming limits in
// this corpus's retrieved examples. Not user-configurable, matching the
// teacher's own unconfigurable tuning constants (graph/client.go's
// maxRetries/baseBackoff) — see Open Question 3 in SPEC_FULL.md.
const maxUploadFileSize = 200 * 1024 * 1024

// cycleKey is the single singleflight key every PerformSync call shares;
// there is only ever one cycle kind per Orchestrator.
const cycleKey = "cycle"

// cycleState models the {Idle, Running, RunningWithPending} state machine
// Design Note §9 calls for: Idle means no cycle is running; Running means
// one is in flight; RunningWithPending means a cycle is in flight AND at
// least one more caller has asked for a fresh cycle since it started.
type cycleState int

const (
	stateIdle cycleState = iota
	stateRunning
	stateRunningWithPending
)

// BackendFactory builds a transport.Backend from the current config. The
// real Orchestrator uses config.BuildBackend; tests inject a factory that
// returns a fake backend, mirroring the teacher's engineFactory injection
// point in internal/sync/orchestrator.go.
type BackendFactory func(cfg *config.Config) (transport.Backend, error)

// AttachEngineFactory builds an attachment engine for a given config,
// root, and backend. Tests override this to inject a fake or instrumented
// Engine; cfg is passed explicitly (rather than closed over) so the
// factory sees the config that produced backend even across a reload.
type AttachEngineFactory func(cfg *config.Config, root string, backend transport.Backend, logger *slog.Logger) *attach.Engine

// Options configures an Orchestrator at construction time.
type Options struct {
	// ConfigPath is re-read on reload (see reload.go); empty disables
	// config-file watching.
	ConfigPath string

	HTTPClient *http.Client

	BackendFactory      BackendFactory
	AttachEngineFactory AttachEngineFactory

	// NowFunc overrides the clock for deterministic tests.
	NowFunc func() time.Time

	Logger *slog.Logger
}

// Orchestrator is the single long-lived value that drives sync cycles for
// one device, generalized from internal/sync.Orchestrator in the teacher:
// one struct holding config, a state machine, and (via reload.go) a
// network/file-change listener, with injectable factories for transport
// and attachment-engine construction.
type Orchestrator struct {
	store *store.Store

	mu      sync.Mutex
	cfg     *config.Config
	backend transport.Backend
	attach  *attach.Engine

	cfgPath string

	backendFactory      BackendFactory
	attachEngineFactory AttachEngineFactory
	httpClient          *http.Client

	sf    singleflight.Group
	state cycleState

	// consecutiveTimeouts drives offline detection: there is no portable
	// network-reachability API in the retrieved corpus, so a run of
	// consecutive transport timeouts is treated as "offline" (see
	// SPEC_FULL.md §4.5).
	consecutiveTimeouts int
	offlineThreshold    int

	nowFunc func() time.Time
	logger  *slog.Logger
}

// New builds an Orchestrator around an already-open Store and an initial
// Config. The transport backend and attachment engine are constructed
// lazily (and rebuilt on config reload) via the supplied factories.
func New(st *store.Store, cfg *config.Config, opts Options) (*Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.NowFunc
	if now == nil {
		now = time.Now
	}
	backendFactory := opts.BackendFactory
	if backendFactory == nil {
		httpClient := opts.HTTPClient
		backendFactory = func(c *config.Config) (transport.Backend, error) {
			return config.BuildBackend(c, httpClient, logger)
		}
	}
	attachFactory := opts.AttachEngineFactory
	if attachFactory == nil {
		attachFactory = func(c *config.Config, root string, backend transport.Backend, logger *slog.Logger) *attach.Engine {
			maxSize := int64(0)
			if c.SyncBackend == config.BackendWebDAV || c.SyncBackend == config.BackendCloud {
				maxSize = maxUploadFileSize
			}
			return attach.New(root, backend, logger, attach.WithMaxFileSize(maxSize))
		}
	}

	o := &Orchestrator{
		store:               st,
		cfg:                 cfg,
		cfgPath:             opts.ConfigPath,
		backendFactory:      backendFactory,
		attachEngineFactory: attachFactory,
		httpClient:          opts.HTTPClient,
		offlineThreshold:    3,
		nowFunc:             now,
		logger:              logger,
	}

	backend, err := backendFactory(cfg)
	if err != nil {
		return nil, err
	}
	o.backend = backend
	o.attach = attachFactory(cfg, config.AttachmentsRoot(cfg.DataDir), backend, logger)

	return o, nil
}

// PerformSync runs one sync cycle, or joins an already-running one. Per
// spec.md §5, concurrent callers observe at most one active cycle; a call
// that arrives while a cycle is running queues a single follow-up cycle,
// and every caller that collapsed into that follow-up receives its result
// rather than the stale one from the cycle that was already in flight.
func (o *Orchestrator) PerformSync(ctx context.Context) (*SyncResult, error) {
	o.mu.Lock()
	switch o.state {
	case stateIdle:
		o.state = stateRunning
	case stateRunning:
		o.state = stateRunningWithPending
	case stateRunningWithPending:
		// already queued; nothing more to do but join the in-flight call.
	}
	o.mu.Unlock()

	v, err, _ := o.sf.Do(cycleKey, func() (any, error) {
		return o.runAndChain(ctx)
	})
	if v == nil {
		return nil, err
	}
	return v.(*SyncResult), err
}

// runAndChain runs one cycle, and if another caller asked for a fresh
// cycle while it was running, runs exactly one follow-up before returning
// — collapsing any number of interleaved requests into that single rerun.
func (o *Orchestrator) runAndChain(ctx context.Context) (*SyncResult, error) {
	for {
		result, err := o.runCycle(ctx)

		o.mu.Lock()
		chain := o.state == stateRunningWithPending
		if chain {
			o.state = stateRunning
		} else {
			o.state = stateIdle
		}
		o.mu.Unlock()

		if !chain {
			return result, err
		}
		// Fall through and run the queued follow-up cycle.
	}
}

// currentBackend and currentAttach return the Orchestrator's current
// backend/attachment engine under lock, since reload.go may swap them out
// from under a running cycle on config change.
func (o *Orchestrator) currentBackend() transport.Backend {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.backend
}

func (o *Orchestrator) currentAttach() *attach.Engine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attach
}

// AttachEngine exposes the current attachment engine for callers outside
// the package that need to run a one-off operation against it (e.g. the
// CLI's gc command, which forces an orphan pass outside the normal gate).
func (o *Orchestrator) AttachEngine() *attach.Engine {
	return o.currentAttach()
}

func (o *Orchestrator) currentConfig() *config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// noteTransportOutcome tracks consecutive transient/timeout failures and
// promotes err to ErrOfflinePaused once offlineThreshold is reached in a
// row, since desktop/server Go has no portable network-reachability API
// in the retrieved corpus (SPEC_FULL.md §4.5). A nil error or any
// non-transient error resets the counter.
func (o *Orchestrator) noteTransportOutcome(err error) error {
	isTimeout := err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, transport.ErrTransient))

	o.mu.Lock()
	defer o.mu.Unlock()

	if !isTimeout {
		o.consecutiveTimeouts = 0
		return err
	}

	o.consecutiveTimeouts++
	if o.consecutiveTimeouts >= o.offlineThreshold {
		o.consecutiveTimeouts = 0
		return ErrOfflinePaused
	}
	return err
}
