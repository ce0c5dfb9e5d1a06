// Package push registers the notification sender. The "log" transport only
// logs; the "websocket" transport pushes to clients holding a signed
// recipient token and logs for recipients that are offline.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/notify"
	"gopkg.in/yaml.v3"
)

// Service names.
const (
	ServiceSender  = "notify.sender"
	ServiceHandler = "notify.handler"
)

// Transports.
const (
	TransportLog       = "log"
	TransportWebsocket = "websocket"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config selects the transport.
type Config struct {
	Transport    string        `yaml:"transport"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Secret verifies the recipient tokens websocket clients present.
	// Required for the websocket transport.
	Secret string `yaml:"secret"`
}

func (c *Config) defaults() {
	if c.Transport == "" {
		c.Transport = TransportLog
	}
}

// Module provides a notify.Sender and, for the websocket transport, the
// HTTP handler clients connect to.
type Module struct {
	config Config
	sender notify.Sender
	hub    *notify.Hub
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "notify.push",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("notify.push: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()

	fallback := notify.NewLogSender(ctx.Logger)
	switch m.config.Transport {
	case TransportLog:
		m.sender = fallback
	case TransportWebsocket:
		m.hub = notify.NewHub(m.config.Secret, fallback, ctx.Logger)
		if m.config.WriteTimeout > 0 {
			m.hub.WriteTimeout = m.config.WriteTimeout
		}
		m.sender = m.hub
		ctx.RegisterService(ServiceHandler, http.Handler(m.hub))
	default:
		return fmt.Errorf("notify.push: unknown transport %q", m.config.Transport)
	}

	ctx.RegisterService(ServiceSender, m.sender)
	ctx.Logger.Info("notification sender provisioned", "transport", m.config.Transport)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.WriteTimeout < 0 {
		return fmt.Errorf("notify.push: write_timeout must be non-negative, got %s", m.config.WriteTimeout)
	}
	if m.config.Transport == TransportWebsocket && m.config.Secret == "" {
		return errors.New("notify.push: the websocket transport requires a secret")
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.hub != nil {
		m.hub.Close()
	}
	return nil
}

// Sender returns the provisioned sender.
func (m *Module) Sender() notify.Sender {
	return m.sender
}
