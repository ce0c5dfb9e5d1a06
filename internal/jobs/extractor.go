package jobs

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/flemzord/ephemera/internal/model"
)

var (
	hashtagPattern = regexp.MustCompile(`#\w+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
)

// MentionMessage returns the notification text sent to a mentioned user.
func MentionMessage(authorID string) string {
	return authorID + " mentioned you in a post."
}

// ExtractReport summarizes one extraction.
type ExtractReport struct {
	Hashtags  []string
	Mentioned []string
	Failed    int
	Updated   bool
}

// Extractor derives hashtags and mentions from a new post, notifies the
// mentioned users, and writes the derived fields back.
type Extractor struct {
	deps Deps
}

// NewExtractor creates the extractor.
func NewExtractor(deps Deps) *Extractor {
	return &Extractor{deps: deps}
}

// Name returns the handler name.
func (e *Extractor) Name() string { return ExtractorName }

// ExtractHashtags returns every #word token in first-seen order, raw casing,
// duplicates kept.
func ExtractHashtags(text string) []string {
	return hashtagPattern.FindAllString(text, -1)
}

// ExtractMentions returns every @word token without the marker.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllString(text, -1)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m[1:]
	}
	return names
}

// Handle processes one post creation. A failed update is returned so the
// trigger can redeliver; send failures are only logged.
func (e *Extractor) Handle(ctx context.Context, postID string, post model.Post) error {
	ctx, span := e.deps.tracer().Start(ctx, "extractor.handle")
	defer span.End()
	span.SetAttributes(attribute.String("post", postID))

	rep, err := e.Extract(ctx, postID, post)
	span.SetAttributes(
		attribute.Int("hashtags", len(rep.Hashtags)),
		attribute.Int("mentions", len(rep.Mentioned)),
	)
	e.deps.Metrics.Count(ExtractorName, "hashtags", len(rep.Hashtags))
	e.deps.Metrics.Count(ExtractorName, "notifications_attempted", len(rep.Mentioned))
	e.deps.Metrics.Count(ExtractorName, "notifications_failed", rep.Failed)
	return err
}

// HandleStored re-runs extraction for a post already in the store.
func (e *Extractor) HandleStored(ctx context.Context, postID string) error {
	doc, err := e.deps.Store.Get(ctx, docstore.Ref{Collection: model.CollectionPosts, ID: postID})
	if err != nil {
		return fmt.Errorf("extractor: get post %s: %w", postID, err)
	}
	post, err := model.PostFromDocument(doc)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	return e.Handle(ctx, postID, post)
}

// Extract derives metadata and applies the side effects.
func (e *Extractor) Extract(ctx context.Context, postID string, post model.Post) (ExtractReport, error) {
	var rep ExtractReport
	log := e.deps.logger()

	if post.TextContent == "" {
		log.Debug("extractor: post has no text", "post", postID)
		return rep, nil
	}

	rep.Hashtags = ExtractHashtags(post.TextContent)
	names := ExtractMentions(post.TextContent)
	if len(names) > 0 {
		ids, err := e.resolveMentions(ctx, postID, names)
		if err != nil {
			return rep, err
		}
		rep.Mentioned = ids
	}

	fields := make(map[string]any, 2)
	if len(rep.Hashtags) > 0 {
		fields[model.FieldHashtags] = rep.Hashtags
	}
	if len(rep.Mentioned) > 0 {
		fields[model.FieldMentionedUserIDs] = rep.Mentioned
	}

	var (
		failed    atomic.Int64
		updateErr error
	)
	g := e.deps.group()
	message := MentionMessage(post.AuthorID)
	for _, userID := range rep.Mentioned {
		g.Go(func() error {
			if err := e.deps.Sender.Send(ctx, userID, message); err != nil {
				failed.Add(1)
				log.Warn("extractor: mention notification failed", "post", postID, "user", userID, "error", err)
			}
			return nil
		})
	}
	if len(fields) > 0 {
		g.Go(func() error {
			updateErr = e.deps.Store.Update(ctx, docstore.Ref{Collection: model.CollectionPosts, ID: postID}, fields)
			return nil
		})
	}
	_ = g.Wait()

	rep.Failed = int(failed.Load())
	if updateErr != nil {
		return rep, fmt.Errorf("extractor: update post %s: %w", postID, updateErr)
	}
	rep.Updated = len(fields) > 0
	log.Info("extractor: processed post",
		"post", postID,
		"hashtags", len(rep.Hashtags),
		"mentions", len(rep.Mentioned),
		"notification_failures", rep.Failed,
	)
	return rep, nil
}

// resolveMentions maps display names to user IDs with a single batched
// query. Each user appears once, in order of first mention. A name shared
// by several users resolves to all of them.
func (e *Extractor) resolveMentions(ctx context.Context, postID string, names []string) ([]string, error) {
	unique := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}

	docs, err := e.deps.Store.Query(ctx, model.CollectionUsers,
		docstore.Where(model.FieldDisplayName, docstore.OpIn, unique))
	if err != nil {
		return nil, fmt.Errorf("extractor: resolve mentions: %w", err)
	}

	byName := make(map[string][]string, len(docs))
	for _, doc := range docs {
		u, err := model.UserFromDocument(doc)
		if err != nil {
			e.deps.logger().Warn("extractor: skipping undecodable user", "user", doc.Ref.ID, "error", err)
			continue
		}
		byName[u.DisplayName] = append(byName[u.DisplayName], u.ID)
	}

	var ids []string
	added := make(map[string]bool)
	for _, name := range unique {
		matched := byName[name]
		if len(matched) > 1 {
			e.deps.logger().Warn("extractor: display name matches several users",
				"post", postID, "name", name, "users", matched)
		}
		for _, id := range matched {
			if !added[id] {
				added[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
