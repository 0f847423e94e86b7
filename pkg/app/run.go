// Package app provides the shared entry point for the cronguard CLI and
// its system service wrapper.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/flemzord/cronguard/internal/audit"
	"github.com/flemzord/cronguard/internal/config"
	"github.com/flemzord/cronguard/internal/core"
	"github.com/flemzord/cronguard/internal/cron"
	"github.com/flemzord/cronguard/internal/lock"
	"github.com/flemzord/cronguard/internal/metrics"
	"github.com/flemzord/cronguard/internal/redact"
	"github.com/flemzord/cronguard/internal/reload"
	"github.com/flemzord/cronguard/internal/store"
	"github.com/flemzord/cronguard/internal/telemetry"
)

const stopTimeout = 30 * time.Second

// Params configures how the runtime is assembled.
type Params struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// Version is injected at build time via ldflags.
	Version string

	// Logger overrides the stderr logger built from LogLevel and LogFormat.
	// Its handler is still wrapped for secret redaction.
	Logger *slog.Logger

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogFormat is "text" (default) or "json".
	LogFormat string
}

// Runtime is a loaded configuration with its modules provisioned and the
// scheduler wired to the configured store and lock.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	DataDir    string
	Logger     *slog.Logger
	App        *core.App
	Scheduler  *cron.Scheduler
	Metrics    *metrics.Collector
	Redactor   *redact.Redactor

	audit           *audit.Log
	shutdownTracing telemetry.Shutdown
}

// Build loads and validates configuration, provisions modules, and wires
// the scheduler. Callers must Close the returned runtime.
func Build(ctx context.Context, params Params) (*Runtime, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.ApplyDefaults(cfg, dataDir)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	base := params.Logger
	if base == nil {
		base, err = NewLogger(params.LogLevel, params.LogFormat)
		if err != nil {
			return nil, err
		}
	}
	redactor := redact.New()
	registerSecrets(redactor, cfg)
	logger := slog.New(redact.NewHandler(base.Handler(), redactor))

	for _, dir := range []string{dataDir, filepath.Dir(cfg.Cron.Lock)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("app: create directory %s: %w", dir, err)
		}
	}

	tcfg := cfg.Telemetry
	tcfg.ServiceName = "cronguard"
	tcfg.ServiceVersion = params.Version
	shutdownTracing, err := telemetry.Setup(ctx, tcfg, logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:          cfg,
		ConfigPath:      cfgPath,
		DataDir:         dataDir,
		Logger:          logger,
		Metrics:         metrics.NewCollector(),
		Redactor:        redactor,
		shutdownTracing: shutdownTracing,
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	if err := appCtx.RegisterService(metrics.ServiceName, rt.Metrics); err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	rt.App = core.NewApp(appCtx)
	if err := rt.App.LoadModules(config.Resolve(cfg)); err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	if err := rt.wire(appCtx); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

// wire builds the scheduler between LoadModules and Start so that Start-time
// lookups (the gateway) find it in the service registry.
func (rt *Runtime) wire(appCtx *core.AppContext) error {
	st, err := core.Service[store.Store](appCtx, store.ServiceName)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	cfg := cron.Config{
		Store:   st,
		Lock:    lock.New(rt.Config.Cron.Lock, rt.Config.Cron.Window, rt.Logger),
		Window:  rt.Config.Cron.Window,
		Logger:  rt.Logger,
		Metrics: rt.Metrics,
	}
	if path := rt.Config.Cron.AuditLog; path != "" {
		rt.audit, err = audit.Open(path, audit.WithRedact(rt.Redactor.Redact), audit.WithLogger(rt.Logger))
		if err != nil {
			return err
		}
		cfg.Observer = rt.audit
	}

	sched, err := cron.NewScheduler(cfg)
	if err != nil {
		return err
	}
	if err := sched.ReplaceJobs(commandTasks(rt.Config.Cron.Jobs, rt.Logger)); err != nil {
		return err
	}
	rt.Scheduler = sched

	return appCtx.RegisterService(cron.ServiceName, sched)
}

// RunOnce executes a single dispatch cycle. Modules are not started: the
// cycle needs only the provisioned store.
func (rt *Runtime) RunOnce(ctx context.Context) (cron.Outcome, error) {
	outcome, err := rt.Scheduler.Run(ctx)
	rt.Logger.Info("cycle finished",
		"outcome", outcome.String(),
		"jobs", rt.Scheduler.Len(),
	)
	return outcome, err
}

// RunDaemon starts all modules and a ticker firing a cycle on the
// configured tick spec, then blocks until ctx is done. SIGHUP, and config
// file changes when cron.watch_interval is set, reload the job table.
func (rt *Runtime) RunDaemon(ctx context.Context) error {
	if err := rt.App.Start(); err != nil {
		return err
	}

	ticker := cron.NewTicker(rt.Scheduler, rt.Config.Cron.Tick, rt.Logger)
	if err := ticker.Start(); err != nil {
		rt.App.Stop()
		return err
	}
	rt.Logger.Info("daemon started",
		"jobs", rt.Scheduler.Len(),
		"window", rt.Config.Cron.Window.String(),
		"lock", rt.Config.Cron.Lock,
	)

	rt.serveReloads(ctx)
	rt.Logger.Info("shutdown signal received", "cause", context.Cause(ctx))

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	var errs []error
	if err := ticker.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("app: stop ticker: %w", err))
	}
	rt.App.Stop()
	rt.Logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// serveReloads blocks until ctx is done, reloading on SIGHUP and watched
// file changes. A failed reload keeps the running job table.
func (rt *Runtime) serveReloads(ctx context.Context) {
	reloader := reload.NewReloader(rt.ConfigPath, rt.DataDir, rt.Config, rt.applyJobs, rt.Logger)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var changes <-chan reload.Change
	if interval := rt.Config.Cron.WatchInterval; interval > 0 {
		w := reload.NewWatcher(reload.WatcherConfig{Path: rt.ConfigPath, PollInterval: interval})
		w.Start(ctx)
		defer w.Stop()
		changes = w.Changes()
	}

	for {
		var cause string
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cause = "sighup"
		case <-changes:
			cause = "file changed"
		}
		rt.Logger.Info("reloading configuration", "cause", cause, "path", rt.ConfigPath)
		if err := reloader.Reload(ctx); err != nil {
			rt.Logger.Error("reload failed", "error", err)
		}
	}
}

// Close releases every module and flushes traces.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.App != nil {
		rt.App.Close()
	}
	if rt.audit != nil {
		if err := rt.audit.Close(); err != nil {
			rt.Logger.Warn("app: closing audit log failed", "error", err)
		}
	}
	if rt.shutdownTracing != nil {
		if err := rt.shutdownTracing(ctx); err != nil {
			rt.Logger.Warn("app: tracing shutdown failed", "error", err)
		}
	}
}

// NewLogger builds the stderr logger. format is "text" or "json".
func NewLogger(level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("app: unknown log format %q", format)
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/cronguard/cronguard.yaml → ~/.config/cronguard/cronguard.yaml → ./cronguard.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "cronguard", "cronguard.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "cronguard", "cronguard.yaml"))
	}

	candidates = append(candidates, "cronguard.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath is where `config init` writes when no path is given.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "cronguard", "cronguard.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "cronguard", "cronguard.yaml")
	}
	return "cronguard.yaml"
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/cronguard if set, otherwise ~/.local/share/cronguard per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "cronguard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "cronguard")
}
