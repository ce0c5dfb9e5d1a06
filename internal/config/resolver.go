package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/ephemera/internal/core"
)

// loadRank orders namespaces so storage is provisioned before the modules
// that may look it up. Unlisted namespaces load after these and before the
// gateway.
var loadRank = map[string]int{
	"docstore": 0,
	"objstore": 1,
	"notify":   2,
	"gateway":  9,
}

const defaultRank = 5

// Resolve returns the configured module IDs in load order: by namespace rank,
// then by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	if r, ok := loadRank[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return defaultRank
}
