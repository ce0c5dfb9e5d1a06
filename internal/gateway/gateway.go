// Package gateway provides the HTTP surface: health, metrics, the post
// creation webhook, the notification socket, and admin job control. It binds
// to loopback by default and follows the module system pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/cron"
	"github.com/flemzord/ephemera/internal/telemetry"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Service names resolved at Start.
const (
	ServiceScheduler     = "jobs.scheduler"
	ServiceMetrics       = "telemetry.metrics"
	ServiceNotifyHandler = "notify.handler"
	ServiceDispatcher    = "gateway.webhook_dispatcher"
)

// JobRunner is the scheduler surface the gateway needs.
type JobRunner interface {
	Status() []cron.JobStatus
	RunNow(ctx context.Context, name string) error
}

// Gateway is the HTTP gateway module. Nothing imports it; other modules
// reach it through the webhook dispatcher service.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	dispatcher *WebhookDispatcher
	startedAt  time.Time

	// Resolved lazily at Start() via service registry.
	jobs      JobRunner
	telemetry *telemetry.Metrics
	notify    http.Handler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = &Metrics{}
	g.dispatcher = NewWebhookDispatcher(g.logger, g.metrics)
	g.dispatcher.maxBody = g.config.MaxBodyBytes

	for source, cfg := range g.config.Webhooks {
		if cfg.Secret != "" {
			g.dispatcher.SetSecret(source, cfg.Secret)
			g.logger.Info("gateway: webhook secret configured", "source", source)
		}
	}

	ctx.RegisterService("gateway.metrics", g.metrics)
	ctx.RegisterService(ServiceDispatcher, g.dispatcher)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	if runner, ok := core.Lookup[JobRunner](g.appCtx, ServiceScheduler); ok {
		g.jobs = runner
	}
	if m, ok := core.Lookup[*telemetry.Metrics](g.appCtx, ServiceMetrics); ok {
		g.telemetry = m
	}
	if h, ok := core.Lookup[http.Handler](g.appCtx, ServiceNotifyHandler); ok {
		g.notify = h
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Dispatcher returns the webhook dispatcher. Valid after Provision.
func (g *Gateway) Dispatcher() *WebhookDispatcher {
	return g.dispatcher
}
