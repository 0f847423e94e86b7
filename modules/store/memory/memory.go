// Package memory registers a process-local store module. State does not
// survive a restart, so it suits the daemon and tests only.
package memory

import (
	"fmt"

	"github.com/flemzord/cronguard/internal/core"
	"github.com/flemzord/cronguard/internal/store"
)

func init() {
	core.RegisterModule(&Module{})
}

var _ core.Provisioner = (*Module)(nil)

// Module publishes an in-memory Store as the "store" service.
type Module struct {
	store *store.InMemoryStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.memory",
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.store = store.NewInMemoryStore(nil)
	if err := ctx.RegisterService(store.ServiceName, store.Store(m.store)); err != nil {
		return fmt.Errorf("memory: %w", err)
	}
	ctx.Logger.Warn("memory: run state is not persisted across restarts")
	return nil
}
