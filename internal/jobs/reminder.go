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

// Reminder thresholds.
const (
	Window24h = 24 * time.Hour
	Window2h  = 2 * time.Hour
)

// ReminderMessage24h returns the 24-hour reminder text.
func ReminderMessage24h(eventName string) string {
	return fmt.Sprintf("Reminder: %q starts in 24 hours.", eventName)
}

// ReminderMessage2h returns the 2-hour reminder text.
func ReminderMessage2h(eventName string) string {
	return fmt.Sprintf("Reminder: %q starts in 2 hours.", eventName)
}

// RemindReport summarizes one reminder run.
type RemindReport struct {
	Events       int
	Attempted    int
	Failed       int
	FlagFailures int
}

// ReminderDispatcher sends 24h and 2h event reminders at most once per
// threshold, gated by flags on the event document.
type ReminderDispatcher struct {
	deps     Deps
	schedule string
}

var _ cron.Job = (*ReminderDispatcher)(nil)

// NewReminderDispatcher creates the dispatcher. An empty schedule means hourly.
func NewReminderDispatcher(deps Deps, schedule string) *ReminderDispatcher {
	return &ReminderDispatcher{deps: deps, schedule: scheduleOr(schedule, cron.DefaultSchedule)}
}

// Name implements cron.Job.
func (d *ReminderDispatcher) Name() string { return ReminderName }

// Schedule implements cron.Job.
func (d *ReminderDispatcher) Schedule() string { return d.schedule }

// Run implements cron.Job.
func (d *ReminderDispatcher) Run(ctx context.Context) error {
	ctx, span := d.deps.tracer().Start(ctx, "reminder.run")
	defer span.End()

	rep, err := d.Dispatch(ctx)
	span.SetAttributes(
		attribute.Int("events", rep.Events),
		attribute.Int("notifications.attempted", rep.Attempted),
		attribute.Int("notifications.failed", rep.Failed),
		attribute.Int("flags.failed", rep.FlagFailures),
	)
	d.deps.Metrics.Count(ReminderName, "events", rep.Events)
	d.deps.Metrics.Count(ReminderName, "notifications_attempted", rep.Attempted)
	d.deps.Metrics.Count(ReminderName, "notifications_failed", rep.Failed)
	d.deps.Metrics.Count(ReminderName, "flag_failures", rep.FlagFailures)
	return err
}

// dueReminders reports which thresholds fire for e at now.
func dueReminders(e model.Event, now time.Time) (send24h, send2h bool) {
	within := func(w time.Duration) bool {
		return e.Date.After(now) && !e.Date.After(now.Add(w))
	}
	return within(Window24h) && !e.Sent24h, within(Window2h) && !e.Sent2h
}

// Dispatch performs one pass over upcoming events.
func (d *ReminderDispatcher) Dispatch(ctx context.Context) (RemindReport, error) {
	var rep RemindReport
	log := d.deps.logger()
	now := d.deps.now()

	docs, err := d.deps.Store.Query(ctx, model.CollectionPosts,
		docstore.Where(model.FieldPostType, docstore.OpEq, model.PostTypeEvent),
		docstore.Where(model.FieldEventDate, docstore.OpGt, model.Millis(now)))
	if err != nil {
		return rep, fmt.Errorf("reminder: query events: %w", err)
	}

	var attempted, failed, flagFailures atomic.Int64
	g := d.deps.group()
	for _, doc := range docs {
		event, err := model.EventFromDocument(doc)
		if err != nil {
			log.Warn("reminder: skipping undecodable event", "event", doc.Ref.ID, "error", err)
			continue
		}
		send24h, send2h := dueReminders(event, now)
		if !send24h && !send2h {
			continue
		}
		rep.Events++

		var messages []string
		flags := make(map[string]any, 2)
		if send24h {
			messages = append(messages, ReminderMessage24h(event.Name))
			flags[model.FieldSent24hReminder] = true
		}
		if send2h {
			messages = append(messages, ReminderMessage2h(event.Name))
			flags[model.FieldSent2hReminder] = true
		}

		for _, msg := range messages {
			for _, recipient := range event.Recipients() {
				attempted.Add(1)
				g.Go(func() error {
					if err := d.deps.Sender.Send(ctx, recipient, msg); err != nil {
						failed.Add(1)
						log.Warn("reminder: send failed", "event", event.ID, "recipient", recipient, "error", err)
					}
					return nil
				})
			}
		}

		g.Go(func() error {
			if err := d.deps.Store.Update(ctx, doc.Ref, flags); err != nil {
				flagFailures.Add(1)
				log.Error("reminder: flag update failed", "event", event.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Attempted = int(attempted.Load())
	rep.Failed = int(failed.Load())
	rep.FlagFailures = int(flagFailures.Load())
	log.Info("reminder: run complete",
		"events", rep.Events,
		"attempted", rep.Attempted,
		"failed", rep.Failed,
		"flag_failures", rep.FlagFailures,
	)
	return rep, nil
}
