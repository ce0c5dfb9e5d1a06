// Package jobs implements the ephemeral-content maintenance jobs: story
// expiry, disappearing-message purge, event reminders, and post metadata
// extraction. Jobs are stateless; all state lives in the document store.
package jobs

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/flemzord/ephemera/internal/notify"
	"github.com/flemzord/ephemera/internal/objstore"
	"github.com/flemzord/ephemera/internal/telemetry"
)

// Job and handler names.
const (
	ReaperName    = "expired_content_reaper"
	PurgerName    = "ephemeral_message_purger"
	ReminderName  = "event_reminder_dispatcher"
	ExtractorName = "post_metadata_extractor"
)

// DefaultMaxConcurrency bounds in-flight collaborator calls per run.
const DefaultMaxConcurrency = 16

// Deps are the collaborators shared by all jobs.
type Deps struct {
	Store   docstore.Store
	Objects objstore.Store
	Sender  notify.Sender

	Logger         *slog.Logger
	Metrics        *telemetry.Metrics
	TracerProvider trace.TracerProvider

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	// MaxConcurrency limits fan-out. Zero or less means unbounded.
	MaxConcurrency int
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) tracer() trace.Tracer {
	return telemetry.Tracer(d.TracerProvider)
}

// group returns a fan-out group. Tasks report their own failures and
// return nil, so Wait is a plain join and no sibling is cancelled.
func (d Deps) group() *errgroup.Group {
	g := new(errgroup.Group)
	if d.MaxConcurrency > 0 {
		g.SetLimit(d.MaxConcurrency)
	}
	return g
}

func scheduleOr(schedule, fallback string) string {
	if schedule == "" {
		return fallback
	}
	return schedule
}
