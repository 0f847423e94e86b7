package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/cronguard/internal/core"
	"github.com/flemzord/cronguard/internal/crontab"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, checks that all referenced module IDs
// exist in the registry, that exactly one store is configured, and that
// every job is well formed. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	switch stores := StoreModules(cfg); len(stores) {
	case 1:
	case 0:
		errs = append(errs, errors.New("config: a store module must be configured"))
	default:
		errs = append(errs, fmt.Errorf("config: only one store module may be configured, got %v", stores))
	}

	errs = append(errs, validateCron(&cfg.Cron)...)

	return errors.Join(errs...)
}

func validateCron(c *CronConfig) []error {
	var errs []error

	if c.Lock == "" {
		errs = append(errs, errors.New("config: cron.lock is required"))
	}
	switch {
	case c.Window <= 0:
		errs = append(errs, fmt.Errorf("config: cron.window must be positive, got %s", c.Window))
	case c.Window < time.Second:
		errs = append(errs, fmt.Errorf("config: cron.window %s is below one second (missing unit?)", c.Window))
	}

	if c.WatchInterval < 0 {
		errs = append(errs, fmt.Errorf("config: cron.watch_interval must not be negative, got %s", c.WatchInterval))
	}

	seen := make(map[string]int, len(c.Jobs))
	for i, j := range c.Jobs {
		where := fmt.Sprintf("cron.jobs[%d]", i)
		if j.Name == "" {
			errs = append(errs, fmt.Errorf("config: %s: name is required", where))
		} else {
			where = fmt.Sprintf("cron.jobs[%d] (%s)", i, j.Name)
			if prev, dup := seen[j.Name]; dup {
				errs = append(errs, fmt.Errorf("config: %s: duplicate name, first used by cron.jobs[%d]", where, prev))
			} else {
				seen[j.Name] = i
			}
		}
		if _, err := crontab.Compile(j.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", where, err))
		}
		if len(j.Command) == 0 || j.Command[0] == "" {
			errs = append(errs, fmt.Errorf("config: %s: command is required", where))
		}
		if j.Timeout < 0 {
			errs = append(errs, fmt.Errorf("config: %s: timeout must not be negative", where))
		}
	}
	return errs
}
