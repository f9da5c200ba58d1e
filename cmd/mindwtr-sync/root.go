package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/mindwtr-sync/internal/config"
	"github.com/tonimelisma/mindwtr-sync/internal/store"
	"github.com/tonimelisma/mindwtr-sync/internal/syncengine"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// httpClientTimeout bounds every request the WebDAV and Cloud backends send
// through this client, document calls and attachment transfers alike;
// internal/attach sets no per-request deadlines of its own.
const httpClientTimeout = 30 * time.Second

// CLIContext bundles everything a subcommand's RunE needs: the resolved
// config, an open store, a ready-to-use Orchestrator, and the flag state
// that governs output verbosity. Built once in PersistentPreRunE.
type CLIContext struct {
	Config       *config.Config
	ConfigPath   string
	Logger       *slog.Logger
	Store        *store.Store
	Orchestrator *syncengine.Orchestrator

	JSON    bool
	Verbose bool
	Quiet   bool
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — PersistentPreRunE must run before any RunE")
	}
	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var cc *CLIContext

	cmd := &cobra.Command{
		Use:           "mindwtr-sync",
		Short:         "Local-first task store sync client",
		Long:          "Synchronizes a local task/project store against a file, WebDAV, or cloud backend.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cc, err = setUp(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if cc != nil && cc.Store != nil {
				return cc.Store.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newProjectCmd())

	return cmd
}

// setUp resolves configuration, opens the local store, and constructs an
// Orchestrator — the shared setup every subcommand needs.
func setUp(cmd *cobra.Command) (*CLIContext, error) {
	bootstrapLogger := buildLogger(config.DefaultConfig())

	env := config.ReadEnvOverrides()
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}
	cfgPath := config.ResolveConfigPath(env, cli, bootstrapLogger)

	cfg, err := config.Resolve(env, cli, bootstrapLogger)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.Open(cmd.Context(), config.StorePath(cfg.DataDir), logger)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	orch, err := syncengine.New(st, cfg, syncengine.Options{
		ConfigPath: cfgPath,
		HTTPClient: &http.Client{Timeout: httpClientTimeout},
		Logger:     logger,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building sync orchestrator: %w", err)
	}

	return &CLIContext{
		Config:       cfg,
		ConfigPath:   cfgPath,
		Logger:       logger,
		Store:        st,
		Orchestrator: orch,
		JSON:         flagJSON,
		Verbose:      flagVerbose,
		Quiet:        flagQuiet,
	}, nil
}

// buildLogger builds an slog.Logger from cfg's logging settings and the CLI
// verbosity flags, which always take priority over the config file. Format
// "auto" picks text for an interactive terminal and JSON otherwise, so logs
// piped into a collector are structured without the operator having to ask.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	switch cfg.Logging.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if flagVerbose {
		level = slog.LevelInfo
	}
	if flagDebug {
		level = slog.LevelDebug
	}
	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := cfg.Logging.LogFormat
	if format == "auto" || format == "" {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
