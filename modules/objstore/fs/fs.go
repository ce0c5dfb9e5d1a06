// Package fs registers a filesystem-backed media bucket as the "objstore"
// service.
package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/objstore"
	"gopkg.in/yaml.v3"
)

// ServiceName is the service under which the bucket is registered.
const ServiceName = "objstore"

const defaultRootDir = "media"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Config holds the bucket configuration.
type Config struct {
	// Root is the bucket directory. Defaults to {DataDir}/media.
	Root string `yaml:"root"`
}

// Module provides an objstore.FSStore.
type Module struct {
	config Config
	store  *objstore.FSStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "objstore.fs",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("objstore.fs: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	if m.config.Root == "" {
		m.config.Root = filepath.Join(ctx.DataDir, defaultRootDir)
	}
	if err := os.MkdirAll(m.config.Root, 0o700); err != nil {
		return fmt.Errorf("objstore.fs: create root %s: %w", m.config.Root, err)
	}

	m.store = objstore.NewFSStore(m.config.Root)
	ctx.RegisterService(ServiceName, objstore.Store(m.store))

	ctx.Logger.Info("filesystem bucket provisioned", "root", m.config.Root)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	info, err := os.Stat(m.config.Root)
	if err != nil {
		return fmt.Errorf("objstore.fs: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("objstore.fs: root %s is not a directory", m.config.Root)
	}
	return nil
}

// Store returns the provisioned bucket.
func (m *Module) Store() *objstore.FSStore {
	return m.store
}
