package config

import (
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronguard/internal/core"
)

const (
	// DefaultWindow is used when cron.window is unset.
	DefaultWindow = 300 * time.Second
	// DefaultLockName is the lock file created in the data directory.
	DefaultLockName = "cronguard.lck"
	// DefaultStore is loaded when no store.* module is configured.
	DefaultStore = "store.file"
	// StoreNamespace is the module namespace persistent stores live in.
	StoreNamespace = "store"
)

// ApplyDefaults fills unset fields. Relative lock paths are resolved
// against dataDir.
func ApplyDefaults(cfg *Config, dataDir string) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.Cron.Window == 0 {
		cfg.Cron.Window = DefaultWindow
	}
	if cfg.Cron.Lock == "" {
		cfg.Cron.Lock = DefaultLockName
	}
	if !filepath.IsAbs(cfg.Cron.Lock) && dataDir != "" {
		cfg.Cron.Lock = filepath.Join(dataDir, cfg.Cron.Lock)
	}
	if cfg.Cron.AuditLog != "" && !filepath.IsAbs(cfg.Cron.AuditLog) && dataDir != "" {
		cfg.Cron.AuditLog = filepath.Join(dataDir, cfg.Cron.AuditLog)
	}
	if cfg.Modules == nil {
		cfg.Modules = make(map[string]yaml.Node)
	}
	if len(StoreModules(cfg)) == 0 {
		cfg.Modules[DefaultStore] = EmptyNode()
	}
}

// StoreModules returns the configured store.* module IDs, sorted.
func StoreModules(cfg *Config) []string {
	var ids []string
	for _, id := range Resolve(cfg) {
		if core.ModuleID(id).Namespace() == StoreNamespace {
			ids = append(ids, id)
		}
	}
	return ids
}

// EmptyNode returns an empty YAML mapping, the config of a module with
// all defaults.
func EmptyNode() yaml.Node {
	return yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}
