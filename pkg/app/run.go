// Package app assembles configuration, modules and jobs into a runnable
// ephemera process. It is shared by the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/flemzord/ephemera/internal/config"
	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/redact"
	"github.com/flemzord/ephemera/internal/telemetry"
)

// ServiceName is reported as the OpenTelemetry service.name.
const ServiceName = "ephemera"

// RunParams configures the application.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogFormat is "text" (default) or "json".
	LogFormat string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a fully loaded application: modules provisioned and jobs
// wired, nothing started yet.
type Runtime struct {
	Config  *config.Config
	Context *core.AppContext
	App     *core.App
	Logger  *slog.Logger

	*wiring

	shutdownTracing telemetry.ShutdownFunc
}

// Build loads and validates the configuration, sets up logging and
// tracing, loads every configured module, and wires the jobs.
func Build(ctx context.Context, params RunParams) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(out, params.LogLevel, params.LogFormat)
	if err != nil {
		return nil, err
	}
	// Secrets from module config (tokens, webhook keys) never reach the log.
	logger = slog.New(redact.NewHandler(logger.Handler(), redact.New(redact.CollectSecrets(cfg.Modules)...)))

	shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing, ServiceName)
	if err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	application := core.NewApp(appCtx)
	w, err := wire(application, appCtx, cfg, config.Resolve(cfg), logger)
	if err != nil {
		return nil, errors.Join(err, application.Close(ctx), shutdown(ctx))
	}

	logger.Info("ephemera loaded",
		"version", params.Version,
		"config", cfgPath,
		"data_dir", dataDir,
		"jobs", w.Scheduler.Names(),
	)

	return &Runtime{
		Config:          cfg,
		Context:         appCtx,
		App:             application,
		Logger:          logger,
		wiring:          w,
		shutdownTracing: shutdown,
	}, nil
}

// Close releases modules that were loaded but not started and flushes
// pending spans.
func (r *Runtime) Close(ctx context.Context) error {
	return errors.Join(r.App.Close(ctx), r.shutdownTracing(ctx))
}

// Start starts all modules, the scheduler and the creation trigger.
func (r *Runtime) Start() error {
	if err := r.App.Start(); err != nil {
		return errors.Join(err, r.Close(context.Background()))
	}
	return nil
}

// Shutdown stops started modules in reverse order and flushes pending spans.
func (r *Runtime) Shutdown(ctx context.Context) error {
	return errors.Join(r.App.Stop(ctx), r.shutdownTracing(ctx))
}

// RunJob loads the application and runs a single job once, without
// starting the scheduler or the gateway.
func RunJob(ctx context.Context, params RunParams, name string) error {
	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	return rt.Scheduler.RunNow(ctx, name)
}

// Extract re-runs metadata extraction for a stored post.
func Extract(ctx context.Context, params RunParams, postID string) error {
	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(ctx)) }()

	return rt.Extractor.HandleStored(ctx, postID)
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/ephemera/ephemera.yaml → ~/.config/ephemera/ephemera.yaml → ./ephemera.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "ephemera", "ephemera.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "ephemera", "ephemera.yaml"))
	}

	candidates = append(candidates, "ephemera.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/ephemera if set, otherwise ~/.local/share/ephemera per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "ephemera")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "ephemera")
}
