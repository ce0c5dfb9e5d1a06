package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// registry maps module IDs to their constructors. Modules add themselves
// from init, so the set is fixed once main starts.
var registry = struct {
	sync.RWMutex
	byID map[string]ModuleInfo
}{byID: make(map[string]ModuleInfo)}

// RegisterModule records a module. It panics on an empty ID, a nil
// constructor, or an ID that is already taken.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s: New must not be nil", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.byID[string(info.ID)]; dup {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	registry.byID[string(info.ID)] = info
}

// GetModule looks up a registered module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[id]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleInfo) bool { return true })
}

// ModulesIn returns the registered modules of one namespace, sorted by ID.
func ModulesIn(namespace string) []ModuleInfo {
	return collect(func(info ModuleInfo) bool { return info.ID.Namespace() == namespace })
}

func collect(keep func(ModuleInfo) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var out []ModuleInfo
	for _, info := range registry.byID {
		if keep(info) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[string]ModuleInfo)
}
