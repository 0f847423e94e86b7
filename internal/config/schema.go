// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and structural validation for cronguard.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronguard/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Cron holds the run loop settings and the job table.
	Cron CronConfig `yaml:"cron"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Telemetry configures trace export.
	Telemetry telemetry.Config `yaml:"telemetry,omitempty"`
}

// CronConfig configures the dispatch cycle.
type CronConfig struct {
	// Lock is the single-instance lock file path.
	// Defaults to cronguard.lck in the data directory.
	Lock string `yaml:"lock,omitempty"`

	// Window is the grace period for overdue jobs and the lock staleness
	// threshold, as a Go duration ("5m"). Defaults to 300s.
	Window time.Duration `yaml:"window,omitempty"`

	// Tick is the daemon's cycle spec. Defaults to every minute.
	Tick string `yaml:"tick,omitempty"`

	// WatchInterval makes the daemon poll the config file and reload the
	// job table on change. Zero disables polling; SIGHUP always reloads.
	WatchInterval time.Duration `yaml:"watch_interval,omitempty"`

	// AuditLog is a JSON Lines file receiving one record per job run.
	// Relative paths resolve against the data directory. Empty disables it.
	AuditLog string `yaml:"audit_log,omitempty"`

	// Jobs is the job table, evaluated in order.
	Jobs []JobConfig `yaml:"jobs"`
}

// JobConfig describes one scheduled command.
type JobConfig struct {
	Name     string            `yaml:"name"`
	Schedule string            `yaml:"schedule"`
	Command  []string          `yaml:"command"`
	Dir      string            `yaml:"dir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Timeout  time.Duration     `yaml:"timeout,omitempty"`
}
