package reload

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/flemzord/cronguard/internal/config"
)

// ApplyFunc installs a validated configuration into the running daemon.
type ApplyFunc func(ctx context.Context, cfg *config.Config) error

// Reloader loads the configuration file and hands it to an ApplyFunc.
// Only the job table is hot-swappable; changes to the lock, window, store
// or modules are reported and take effect on restart.
type Reloader struct {
	path    string
	dataDir string
	apply   ApplyFunc
	logger  *slog.Logger

	mu      sync.Mutex
	current *config.Config
}

// NewReloader creates a Reloader. current is the configuration the daemon
// was started with.
func NewReloader(path, dataDir string, current *config.Config, apply ApplyFunc, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:    path,
		dataDir: dataDir,
		apply:   apply,
		logger:  logger,
		current: current,
	}
}

// Reload reads, validates and applies the configuration. On error the
// running configuration is left untouched.
func (r *Reloader) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	cfg, err := config.Load(r.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	config.ApplyDefaults(cfg, r.dataDir)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, field := range restartRequired(r.current, cfg) {
		r.logger.Warn("reload: change requires a restart", "field", field)
	}

	if err := r.apply(ctx, cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	r.current = cfg
	r.logger.Info("reload: configuration applied", "jobs", len(cfg.Cron.Jobs))
	return nil
}

// restartRequired lists the settings that differ but cannot be swapped
// into a running daemon.
func restartRequired(old, cur *config.Config) []string {
	if old == nil {
		return nil
	}
	var fields []string
	if old.Cron.Lock != cur.Cron.Lock {
		fields = append(fields, "cron.lock")
	}
	if old.Cron.Window != cur.Cron.Window {
		fields = append(fields, "cron.window")
	}
	if old.Cron.Tick != cur.Cron.Tick {
		fields = append(fields, "cron.tick")
	}
	if old.Cron.WatchInterval != cur.Cron.WatchInterval {
		fields = append(fields, "cron.watch_interval")
	}
	if old.Cron.AuditLog != cur.Cron.AuditLog {
		fields = append(fields, "cron.audit_log")
	}
	if !slices.Equal(config.Resolve(old), config.Resolve(cur)) {
		fields = append(fields, "modules")
	}
	if old.Telemetry != cur.Telemetry {
		fields = append(fields, "telemetry")
	}
	return fields
}
