package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/ephemera/internal/cron"
	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/flemzord/ephemera/internal/model"
)

// PurgeReport summarizes one purger run.
type PurgeReport struct {
	Conversations int
	Deleted       int
	Failed        int
}

// Purger deletes disappearing messages past their deadline, one atomic
// batch per conversation.
type Purger struct {
	deps     Deps
	schedule string
}

var _ cron.Job = (*Purger)(nil)

// NewPurger creates the purger. An empty schedule means hourly.
func NewPurger(deps Deps, schedule string) *Purger {
	return &Purger{deps: deps, schedule: scheduleOr(schedule, cron.DefaultSchedule)}
}

// Name implements cron.Job.
func (p *Purger) Name() string { return PurgerName }

// Schedule implements cron.Job.
func (p *Purger) Schedule() string { return p.schedule }

// Run implements cron.Job.
func (p *Purger) Run(ctx context.Context) error {
	ctx, span := p.deps.tracer().Start(ctx, "purger.run")
	defer span.End()

	rep, err := p.Purge(ctx)
	span.SetAttributes(
		attribute.Int("conversations", rep.Conversations),
		attribute.Int("deleted", rep.Deleted),
		attribute.Int("failed", rep.Failed),
	)
	p.deps.Metrics.Count(PurgerName, "conversations", rep.Conversations)
	p.deps.Metrics.Count(PurgerName, "deleted", rep.Deleted)
	p.deps.Metrics.Count(PurgerName, "conversations_failed", rep.Failed)
	return err
}

// Purge scans every conversation. A failure inside one conversation is
// logged and does not affect the others.
func (p *Purger) Purge(ctx context.Context) (PurgeReport, error) {
	var rep PurgeReport
	log := p.deps.logger()
	now := p.deps.now()

	convs, err := p.deps.Store.Query(ctx, model.CollectionConversations)
	if err != nil {
		return rep, fmt.Errorf("purger: list conversations: %w", err)
	}
	rep.Conversations = len(convs)

	var deleted, failed atomic.Int64
	g := p.deps.group()
	for _, conv := range convs {
		g.Go(func() error {
			n, err := p.purgeConversation(ctx, conv.Ref.ID, now)
			if err != nil {
				failed.Add(1)
				log.Error("purger: conversation failed", "conversation", conv.Ref.ID, "error", err)
				return nil
			}
			if n > 0 {
				deleted.Add(int64(n))
				log.Debug("purger: purged messages", "conversation", conv.Ref.ID, "count", n)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Deleted = int(deleted.Load())
	rep.Failed = int(failed.Load())
	log.Info("purger: run complete",
		"conversations", rep.Conversations,
		"deleted", rep.Deleted,
		"failed", rep.Failed,
	)
	return rep, nil
}

func (p *Purger) purgeConversation(ctx context.Context, conversationID string, now time.Time) (int, error) {
	docs, err := p.deps.Store.Query(ctx, model.MessagesCollection(conversationID),
		docstore.Where(model.FieldDisappearAfter, docstore.OpGt, 0))
	if err != nil {
		return 0, fmt.Errorf("query messages: %w", err)
	}

	batch := p.deps.Store.Batch()
	for _, doc := range docs {
		msg, err := model.MessageFromDocument(doc)
		if err != nil {
			p.deps.logger().Warn("purger: skipping undecodable message",
				"conversation", conversationID, "message", doc.Ref.ID, "error", err)
			continue
		}
		if msg.ExpiredAt(now) {
			batch.Delete(doc.Ref)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("delete %d messages: %w", batch.Len(), err)
	}
	return batch.Len(), nil
}
