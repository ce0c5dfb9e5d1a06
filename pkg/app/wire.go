package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/ephemera/internal/config"
	"github.com/flemzord/ephemera/internal/core"
	"github.com/flemzord/ephemera/internal/cron"
	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/flemzord/ephemera/internal/gateway"
	"github.com/flemzord/ephemera/internal/jobs"
	"github.com/flemzord/ephemera/internal/notify"
	"github.com/flemzord/ephemera/internal/objstore"
	"github.com/flemzord/ephemera/internal/telemetry"
	"github.com/flemzord/ephemera/internal/trigger"
	docsqlite "github.com/flemzord/ephemera/modules/docstore/sqlite"
	"github.com/flemzord/ephemera/modules/notify/push"
	objfs "github.com/flemzord/ephemera/modules/objstore/fs"
)

// frontendNamespace groups modules that serve traffic. They load after the
// jobs are wired so they start last and stop first.
const frontendNamespace = "gateway"

// schedulerModule wraps a *cron.Scheduler so it participates in the App
// lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "jobs.scheduler"}
}

func (m *schedulerModule) Start() error { return m.scheduler.Start() }

func (m *schedulerModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }

// triggerModule wraps the post-creation bus.
type triggerModule struct {
	bus *trigger.Bus
}

func (m *triggerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "trigger.posts"}
}

func (m *triggerModule) Start() error { return m.bus.Start() }

func (m *triggerModule) Stop(ctx context.Context) error { return m.bus.Stop(ctx) }

// wiring holds the components built in code rather than from module config.
type wiring struct {
	Scheduler *cron.Scheduler
	Extractor *jobs.Extractor
	Bus       *trigger.Bus
	Metrics   *telemetry.Metrics
}

// wire loads backend modules, builds the jobs on top of their services,
// appends the scheduler and trigger to the lifecycle, then loads the
// frontend modules and connects the creation webhook.
func wire(
	app *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	ids []string,
	logger *slog.Logger,
) (*wiring, error) {
	backends, frontends := splitModules(ids)
	if err := app.LoadModules(backends); err != nil {
		return nil, err
	}

	deps, err := resolveDeps(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	w := &wiring{Metrics: deps.Metrics}
	if w.Metrics != nil {
		appCtx.RegisterService(gateway.ServiceMetrics, w.Metrics)
	}

	w.Scheduler, err = newScheduler(cfg.Jobs, deps, logger)
	if err != nil {
		return nil, err
	}
	app.Append(&schedulerModule{scheduler: w.Scheduler})
	appCtx.RegisterService(gateway.ServiceScheduler, w.Scheduler)

	w.Extractor = jobs.NewExtractor(deps)
	if !cfg.Jobs.Extractor.Disabled {
		w.Bus, err = trigger.NewBus(w.Extractor, trigger.Config{
			MaxRetries: cfg.Jobs.Extractor.MaxRetries,
		}, logger.With("component", "trigger"))
		if err != nil {
			return nil, err
		}
		app.Append(&triggerModule{bus: w.Bus})
	}

	if err := app.LoadModules(frontends); err != nil {
		return nil, err
	}

	if w.Bus != nil {
		if d, ok := core.Lookup[*gateway.WebhookDispatcher](appCtx, gateway.ServiceDispatcher); ok {
			d.Register(trigger.WebhookSource, w.Bus)
			logger.Info("trigger: creation webhook registered", "source", trigger.WebhookSource)
		} else {
			logger.Info("trigger: no gateway configured, creation webhook disabled")
		}
	}

	return w, nil
}

func splitModules(ids []string) (backends, frontends []string) {
	for _, id := range ids {
		if core.ModuleID(id).Namespace() == frontendNamespace {
			frontends = append(frontends, id)
			continue
		}
		backends = append(backends, id)
	}
	return backends, frontends
}

func resolveDeps(appCtx *core.AppContext, cfg *config.Config, logger *slog.Logger) (jobs.Deps, error) {
	store, ok := core.Lookup[docstore.Store](appCtx, docsqlite.ServiceName)
	if !ok {
		return jobs.Deps{}, fmt.Errorf("app: service %q not available", docsqlite.ServiceName)
	}
	objects, ok := core.Lookup[objstore.Store](appCtx, objfs.ServiceName)
	if !ok {
		return jobs.Deps{}, fmt.Errorf("app: service %q not available", objfs.ServiceName)
	}
	sender, ok := core.Lookup[notify.Sender](appCtx, push.ServiceSender)
	if !ok {
		return jobs.Deps{}, fmt.Errorf("app: service %q not available", push.ServiceSender)
	}

	deps := jobs.Deps{
		Store:          store,
		Objects:        objects,
		Sender:         sender,
		Logger:         logger.With("component", "jobs"),
		MaxConcurrency: cfg.Jobs.MaxConcurrency,
	}
	if cfg.Telemetry.MetricsEnabled() {
		deps.Metrics = telemetry.NewMetrics()
	}
	return deps, nil
}

func newScheduler(cfg config.JobsConfig, deps jobs.Deps, logger *slog.Logger) (*cron.Scheduler, error) {
	opts := []cron.Option{
		cron.WithMetrics(deps.Metrics),
		cron.WithTimeout(cfg.Timeout),
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("app: jobs timezone: %w", err)
		}
		opts = append(opts, cron.WithLocation(loc))
	}
	s := cron.NewScheduler(logger.With("component", "cron"), opts...)

	candidates := []struct {
		job cron.Job
		cfg config.ScheduledJob
	}{
		{jobs.NewReaper(deps, cfg.Reaper.Schedule), cfg.Reaper},
		{jobs.NewPurger(deps, cfg.Purger.Schedule), cfg.Purger},
		{jobs.NewReminderDispatcher(deps, cfg.Reminder.Schedule), cfg.Reminder},
	}
	for _, c := range candidates {
		if c.cfg.Disabled {
			logger.Info("cron: job disabled", "job", c.job.Name())
			continue
		}
		if err := s.RegisterJob(c.job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
