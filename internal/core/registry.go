package core

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"sync"
)

// validID matches namespace.name IDs: lowercase segments joined by dots.
var validID = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// registry is the process-wide set of compiled-in modules. Modules add
// themselves from init; config resolution and the CLI read it.
type registry struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var modules = newRegistry()

func newRegistry() *registry {
	return &registry{byID: make(map[ModuleID]ModuleInfo)}
}

func (r *registry) add(info ModuleInfo) {
	if !validID.MatchString(string(info.ID)) {
		panic(fmt.Sprintf("core: invalid module ID %q (want namespace.name)", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	r.byID[info.ID] = info
}

// sorted returns the modules matching keep, ordered by ID.
func (r *registry) sorted(keep func(ModuleID) bool) []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModuleInfo
	for id, info := range r.byID {
		if keep == nil || keep(id) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// RegisterModule adds instance's module to the registry. It panics on a
// malformed or duplicate ID, so a bad build fails at startup. Call it from
// init.
func RegisterModule(instance Module) {
	modules.add(instance.ModuleInfo())
}

// GetModule returns the module registered under id.
func GetModule(id string) (ModuleInfo, bool) {
	modules.mu.RLock()
	defer modules.mu.RUnlock()
	info, ok := modules.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	return modules.sorted(nil)
}

// GetModulesByNamespace returns the modules in namespace, so "store"
// yields store.file, store.memory and store.sqlite.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return modules.sorted(func(id ModuleID) bool { return id.Namespace() == namespace })
}

// ModuleIDs returns the sorted IDs of every registered module.
func ModuleIDs() []string {
	infos := GetModules()
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = string(info.ID)
	}
	return ids
}

// resetRegistry empties the registry. Tests only.
func resetRegistry() {
	modules.mu.Lock()
	defer modules.mu.Unlock()
	modules.byID = make(map[ModuleID]ModuleInfo)
}
