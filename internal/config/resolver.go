package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/cronguard/internal/core"
)

// Resolve returns the module IDs from the configuration in load order:
// stores first so their services exist when later modules provision, then
// everything else, alphabetically within each group.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		as := core.ModuleID(a).Namespace() == StoreNamespace
		bs := core.ModuleID(b).Namespace() == StoreNamespace
		if as != bs {
			if as {
				return -1
			}
			return 1
		}
		return cmp.Compare(a, b)
	})
	return ids
}
