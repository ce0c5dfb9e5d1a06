package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/ephemera/internal/telemetry"
)

// JobStatus is a snapshot of a job's run history.
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastStart    time.Time     `json:"last_start,omitzero"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

type jobState struct {
	job  Job
	lock sync.Mutex // held for the duration of a run

	mu     sync.Mutex
	status JobStatus
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records run outcomes on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTimeout bounds every run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithLocation evaluates schedules in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

// WithTracerProvider sets the provider for run spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) { s.tracer = telemetry.Tracer(tp) }
}

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex to prevent parallel execution
// of the same job (uses TryLock, so scheduled and manual runs never overlap).
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     []*jobState
	byName   map[string]*jobState
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	timeout  time.Duration
	location *time.Location
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		byName:   make(map[string]*jobState),
		logger:   logger,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = telemetry.Tracer(nil)
	}
	return s
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	st := &jobState{job: j, status: JobStatus{Name: name, Schedule: j.Schedule()}}
	s.byName[name] = st
	s.jobs = append(s.jobs, st)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(s.location))

	for _, st := range s.jobs {
		_, err := s.cron.AddFunc(st.job.Schedule(), func() {
			// If the previous tick is still running, skip this one.
			if !st.lock.TryLock() {
				s.logger.Warn("cron: job still running, skipping tick", "job", st.job.Name())
				s.metrics.ObserveSkip(st.job.Name())
				return
			}
			defer st.lock.Unlock()
			_ = s.execute(ctx, st, "schedule")
		})
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", st.job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}

// RunNow executes the named job synchronously on the caller's context.
// It fails with ErrJobRunning rather than waiting for an in-flight run.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	st, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	if !st.lock.TryLock() {
		return fmt.Errorf("%w: %q", ErrJobRunning, name)
	}
	defer st.lock.Unlock()
	return s.execute(ctx, st, "manual")
}

// Status returns a snapshot of every registered job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	states := append([]*jobState(nil), s.jobs...)
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.status)
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered job names in registration order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, st := range s.jobs {
		names[i] = st.job.Name()
	}
	return names
}

// execute runs one job invocation. The caller holds st.lock.
func (s *Scheduler) execute(ctx context.Context, st *jobState, trigger string) error {
	name := st.job.Name()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "cron.run", trace.WithAttributes(
		attribute.String("job", name),
		attribute.String("trigger", trigger),
	))
	defer span.End()

	start := time.Now()
	st.mu.Lock()
	st.status.Running = true
	st.status.LastStart = start
	st.mu.Unlock()

	s.logger.Debug("cron: job started", "job", name, "trigger", trigger)
	err := st.job.Run(ctx)
	elapsed := time.Since(start)

	st.mu.Lock()
	st.status.Running = false
	st.status.Runs++
	st.status.LastDuration = elapsed
	st.status.LastError = ""
	if err != nil {
		st.status.Failures++
		st.status.LastError = err.Error()
	}
	st.mu.Unlock()

	s.metrics.ObserveRun(name, elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("cron: job failed", "job", name, "duration", elapsed, "error", err)
		return err
	}
	s.logger.Debug("cron: job completed", "job", name, "duration", elapsed)
	return nil
}
