package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/ephemera/internal/cron"
	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/flemzord/ephemera/internal/model"
	"github.com/flemzord/ephemera/internal/objstore"
)

// ReapReport summarizes one reaper run.
type ReapReport struct {
	Deleted       int
	MediaAttempts int
	MediaFailures int
}

// Reaper deletes expired stories and their media. The document delete is
// authoritative; media deletes are best-effort and never block it.
type Reaper struct {
	deps     Deps
	schedule string
}

var _ cron.Job = (*Reaper)(nil)

// NewReaper creates the reaper. An empty schedule means hourly.
func NewReaper(deps Deps, schedule string) *Reaper {
	return &Reaper{deps: deps, schedule: scheduleOr(schedule, cron.DefaultSchedule)}
}

// Name implements cron.Job.
func (r *Reaper) Name() string { return ReaperName }

// Schedule implements cron.Job.
func (r *Reaper) Schedule() string { return r.schedule }

// Run implements cron.Job.
func (r *Reaper) Run(ctx context.Context) error {
	ctx, span := r.deps.tracer().Start(ctx, "reaper.run")
	defer span.End()

	rep, err := r.Reap(ctx)
	span.SetAttributes(
		attribute.Int("deleted", rep.Deleted),
		attribute.Int("media.attempts", rep.MediaAttempts),
		attribute.Int("media.failures", rep.MediaFailures),
	)
	r.deps.Metrics.Count(ReaperName, "deleted", rep.Deleted)
	r.deps.Metrics.Count(ReaperName, "media_attempts", rep.MediaAttempts)
	r.deps.Metrics.Count(ReaperName, "media_failures", rep.MediaFailures)
	return err
}

// Reap performs one pass over expired stories.
func (r *Reaper) Reap(ctx context.Context) (ReapReport, error) {
	var rep ReapReport
	log := r.deps.logger()
	now := r.deps.now()

	docs, err := r.deps.Store.Query(ctx, model.CollectionStories,
		docstore.Where(model.FieldExpiresAt, docstore.OpLte, model.Millis(now)))
	if err != nil {
		return rep, fmt.Errorf("reaper: query stories: %w", err)
	}
	if len(docs) == 0 {
		log.Info("reaper: no expired stories")
		return rep, nil
	}

	batch := r.deps.Store.Batch()
	var paths []string
	for _, doc := range docs {
		batch.Delete(doc.Ref)

		story, err := model.StoryFromDocument(doc)
		if err != nil {
			log.Warn("reaper: undecodable story, deleting document only", "story", doc.Ref.ID, "error", err)
			continue
		}
		if story.MediaURL == "" {
			continue
		}
		path, err := objstore.PathFromURL(story.MediaURL)
		if err != nil {
			log.Warn("reaper: skipping media with malformed URL", "story", story.ID, "error", err)
			continue
		}
		paths = append(paths, path)
	}

	commitDone := make(chan error, 1)
	go func() { commitDone <- batch.Commit(ctx) }()

	var failures atomic.Int64
	g := r.deps.group()
	for _, path := range paths {
		g.Go(func() error {
			err := r.deps.Objects.Delete(ctx, path)
			switch {
			case err == nil:
			case errors.Is(err, objstore.ErrNotFound):
				log.Debug("reaper: media already gone", "path", path)
			default:
				failures.Add(1)
				log.Warn("reaper: media delete failed", "path", path, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	commitErr := <-commitDone

	rep.MediaAttempts = len(paths)
	rep.MediaFailures = int(failures.Load())
	if commitErr != nil {
		return rep, fmt.Errorf("reaper: delete %d stories: %w", len(docs), commitErr)
	}
	rep.Deleted = len(docs)

	log.Info("reaper: deleted expired stories",
		"deleted", rep.Deleted,
		"media_attempts", rep.MediaAttempts,
		"media_failures", rep.MediaFailures,
	)
	return rep, nil
}
