package sqlite

import (
	"fmt"
	"time"
)

const (
	defaultBusyTimeout   = 5000
	defaultDBFile        = "state.db"
	defaultPurgeInterval = time.Hour
)

// Config holds the SQLite store module configuration.
type Config struct {
	// Path is the database file path. Defaults to {DataDir}/state.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// PurgeInterval is how often the daemon deletes expired rows.
	// Defaults to 1h. Expired rows are invisible to Get regardless.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = defaultPurgeInterval
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.PurgeInterval < 0 {
		return fmt.Errorf("sqlite: purge_interval must be non-negative, got %s", c.PurgeInterval)
	}
	return nil
}
