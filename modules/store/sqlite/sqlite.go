// Package sqlite implements a persistent SQLite-backed store module. It
// uses modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronguard/internal/core"
	"github.com/flemzord/cronguard/internal/store"
)

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

// Module publishes a SQLite Store as the "store" service.
type Module struct {
	config Config
	db     *sql.DB
	store  *Store
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := openDB(context.TODO(), m.config)
	if err != nil {
		return err
	}
	m.db = db
	m.store = newStore(db, nil)

	if err := ctx.RegisterService(store.ServiceName, store.Store(m.store)); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: %w", err)
	}

	m.logger.Debug("sqlite store provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.PingContext(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Start implements core.Starter. It purges expired rows periodically.
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
				n, err := m.store.Purge(ctx)
				if err != nil {
					m.logger.Warn("sqlite: purge failed", "error", err)
					continue
				}
				if n > 0 {
					m.logger.Debug("sqlite: purged expired rows", "rows", n)
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
	}
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Store returns the store backing the module.
func (m *Module) Store() *Store {
	return m.store
}
