// Package core provides the module system foundation for cronguard.
package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// services is shared by an AppContext and every context derived from it.
type services struct {
	mu sync.RWMutex
	m  map[string]any
}

// AppContext carries shared resources available to modules during provisioning
// and at runtime.
type AppContext struct {
	// Logger for the current module scope.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	parentLogger  *slog.Logger
	moduleConfigs map[string]yaml.Node
	services      *services
}

// NewAppContext creates a new AppContext with the given base logger and data directory.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:       logger,
		DataDir:      dataDir,
		parentLogger: logger,
		services:     &services{m: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of the AppContext with module configurations set.
// Each key is a module ID mapping to its raw YAML configuration node.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a new AppContext scoped to the given module ID,
// with a child logger that includes the module ID.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.parentLogger.With("module", string(id)),
		DataDir:       ctx.DataDir,
		parentLogger:  ctx.parentLogger,
		moduleConfigs: ctx.moduleConfigs,
		services:      ctx.services,
	}
}

// RegisterService publishes a value other modules and the application can
// look up by name. Registering the same name twice is an error.
func (ctx *AppContext) RegisterService(name string, svc any) error {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	if _, exists := ctx.services.m[name]; exists {
		return fmt.Errorf("core: service %q already registered", name)
	}
	ctx.services.m[name] = svc
	return nil
}

// GetService returns the service registered under name.
func (ctx *AppContext) GetService(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.m[name]
	return svc, ok
}

// Service returns the service registered under name as a T.
func Service[T any](ctx *AppContext, name string) (T, error) {
	var zero T
	v, ok := ctx.GetService(name)
	if !ok {
		return zero, fmt.Errorf("core: service %q not registered", name)
	}
	svc, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("core: service %q is a %T", name, v)
	}
	return svc, nil
}

// LoadModule builds the module registered under id and runs
// Configure, Provision and Validate on it, in that order, for whichever of
// them it implements. Configure is skipped when the module has no section.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("core: unknown module %s (compiled in: %v)", id, ModuleIDs())
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("core: configure %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		moduleCtx := ctx.ForModule(info.ID)
		if err := p.Provision(moduleCtx); err != nil {
			return nil, fmt.Errorf("core: provision %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("core: validate %s: %w", id, err)
		}
	}

	return mod, nil
}
