package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const shutdownTimeout = 30 * time.Second

// App owns the loaded modules and drives Start and Stop across them.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
	closed  bool
}

// NewApp creates a new App with the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// Modules returns the IDs of loaded modules in load order.
func (a *App) Modules() []ModuleID {
	ids := make([]ModuleID, len(a.modules))
	for i, mi := range a.modules {
		ids[i] = mi.id
	}
	return ids
}

// LoadModules loads ids in order. On failure the modules loaded so far
// are closed and the App is left empty.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.Close()
			return err
		}
		info := mod.ModuleInfo()
		a.modules = append(a.modules, moduleInstance{
			id:     info.ID,
			module: mod,
		})
		a.logger.Debug("core: module loaded", "module", string(info.ID))
	}
	return nil
}

// Start starts all loaded modules that implement Starter, in order.
// If any Start() fails, already-started modules are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		if err := s.Start(); err != nil {
			a.stopModules(i - 1)
			return fmt.Errorf("core: start %s: %w", mi.id, err)
		}
		mi.started = true
		a.logger.Debug("core: module started", "module", string(mi.id))
	}
	return nil
}

// Stop stops the started modules in reverse order. Each module shares a
// single shutdownTimeout budget.
func (a *App) Stop() {
	a.stopModules(len(a.modules) - 1)
}

func (a *App) stopModules(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		a.stopOne(ctx, mi)
		mi.started = false
	}
}

// Close stops every loaded module that has not been stopped yet, started
// or not, in reverse order, and forgets them. Close is idempotent.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		a.stopOne(ctx, &a.modules[i])
	}
	a.modules = nil
}

func (a *App) stopOne(ctx context.Context, mi *moduleInstance) {
	if mi.closed {
		return
	}
	mi.closed = true
	s, ok := mi.module.(Stopper)
	if !ok {
		return
	}
	if err := s.Stop(ctx); err != nil {
		a.logger.Error("core: module stop failed", "module", string(mi.id), "error", err)
	}
}
