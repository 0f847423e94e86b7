// Package file implements the default store module. Entries live as
// individual files under a cache directory, one per key.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronguard/internal/core"
	"github.com/flemzord/cronguard/internal/store"
)

const defaultDir = "cache"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config holds the file store configuration.
type Config struct {
	// Dir is the cache directory. Relative paths are resolved against
	// the data directory. Defaults to {DataDir}/cache.
	Dir string `yaml:"dir"`

	// PurgeInterval is how often the daemon removes expired files.
	// Zero disables purging.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// Module publishes a file-backed Store as the "store" service.
type Module struct {
	config Config
	fs     afero.Fs
	store  *Store
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.file",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("file: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}

	dir := m.config.Dir
	if dir == "" {
		dir = defaultDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(ctx.DataDir, dir)
	}
	m.config.Dir = dir

	if err := m.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("file: create directory %s: %w", dir, err)
	}
	m.store = NewStore(m.fs, dir, nil)

	if err := ctx.RegisterService(store.ServiceName, store.Store(m.store)); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	m.logger.Debug("file store provisioned", "dir", dir)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.PurgeInterval < 0 {
		return fmt.Errorf("file: purge_interval must be non-negative, got %s", m.config.PurgeInterval)
	}
	info, err := m.fs.Stat(m.config.Dir)
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file: %s is not a directory", m.config.Dir)
	}
	return nil
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if m.config.PurgeInterval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.config.PurgeInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := m.store.Purge()
				if err != nil {
					m.logger.Warn("file: purge failed", "error", err)
					continue
				}
				if n > 0 {
					m.logger.Debug("file: purged expired entries", "entries", n)
				}
			}
		}
	}()
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
		m.cancel = nil
	}
	return nil
}
