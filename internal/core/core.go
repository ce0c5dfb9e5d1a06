package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// shutdownTimeout caps Stop when the caller's context has no deadline.
const shutdownTimeout = 30 * time.Second

// App runs a fixed, ordered set of modules: the configured ones plus the
// components appended in code. Start walks the list forward and Stop walks
// it backward.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
}

// NewApp creates an empty App bound to ctx.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules configures, provisions and validates the modules for ids, in
// order. On failure the modules loaded so far are released.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			_ = a.Close(context.Background())
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.Append(mod)
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// Append adds an already-constructed module to the lifecycle, such as the
// job scheduler or the creation trigger. Must be called before Start.
func (a *App) Append(mod Module) {
	a.modules = append(a.modules, moduleInstance{
		id:     mod.ModuleInfo().ID,
		module: mod,
	})
}

// Module returns the module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// Start starts every Starter in order. If one fails, the modules already
// started are stopped again and the start error is returned.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			_ = a.stop(context.Background(), i-1, true)
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
		a.logger.Info("module started", "module", string(mi.id))
	}
	a.logger.Info("all modules started", "count", len(a.modules))
	return nil
}

// Stop stops the started modules in reverse order. Errors are logged and
// returned joined; one failing module does not keep the others running.
func (a *App) Stop(ctx context.Context) error {
	return a.stop(ctx, len(a.modules)-1, true)
}

// Close stops every module whether or not it was started, releasing what
// Provision opened. It is the counterpart of LoadModules for one-shot
// commands that never call Start.
func (a *App) Close(ctx context.Context) error {
	err := a.stop(ctx, len(a.modules)-1, false)
	a.modules = nil
	return err
}

func (a *App) stop(ctx context.Context, from int, startedOnly bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	var errs []error
	for i := from; i >= 0; i-- {
		mi := &a.modules[i]
		if startedOnly && !mi.started {
			continue
		}
		mi.started = false
		s, ok := mi.module.(Stopper)
		if !ok {
			continue
		}
		begin := time.Now()
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop failed", "module", string(mi.id), "error", err)
			errs = append(errs, fmt.Errorf("stopping module %s: %w", mi.id, err))
			continue
		}
		a.logger.Debug("module stopped", "module", string(mi.id), "took", time.Since(begin))
	}
	return errors.Join(errs...)
}

// Run starts all modules, blocks until ctx is cancelled, then stops them.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown requested")

	err := a.Stop(context.WithoutCancel(ctx))
	a.logger.Info("shutdown complete")
	return err
}
