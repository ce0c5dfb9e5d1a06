// Package trigger delivers post-creation events to the metadata extractor.
// The application POSTs each new post to the webhook; the payload is
// published on an in-process topic and consumed with retries.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/flemzord/ephemera/internal/gateway"
	"github.com/flemzord/ephemera/internal/model"
)

// TopicPostsCreated carries PostCreated payloads.
const TopicPostsCreated = "posts.created"

// WebhookSource is the webhook source name the bus is registered under.
const WebhookSource = "posts"

// ErrInvalidPayload indicates a webhook body that is not a PostCreated. The
// gateway answers it with 400.
var ErrInvalidPayload = fmt.Errorf("trigger: invalid payload: %w", gateway.ErrBadPayload)

// PostCreated is the creation event for a single post.
type PostCreated struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// PostHandler processes one created post. A returned error is retried.
type PostHandler interface {
	Handle(ctx context.Context, postID string, post model.Post) error
}

// Config tunes delivery retries.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BufferSize      int64
}

func (c *Config) defaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
}

// Bus is the in-process post-creation pipeline.
type Bus struct {
	pubsub  *gochannel.GoChannel
	router  *message.Router
	handler PostHandler
	logger  *slog.Logger
}

// NewBus wires the topic, the retrying router, and handler.
func NewBus(handler PostHandler, cfg Config, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	wlog := watermill.NewSlogLogger(logger)

	b := &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, wlog),
		handler: handler,
		logger:  logger,
	}

	router, err := message.NewRouter(message.RouterConfig{}, wlog)
	if err != nil {
		return nil, fmt.Errorf("trigger: new router: %w", err)
	}
	router.AddMiddleware(
		b.dropExhausted,
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.InitialInterval,
			MaxInterval:     cfg.MaxInterval,
			Multiplier:      2,
			Logger:          wlog,
		}.Middleware,
	)
	router.AddConsumerHandler("post_metadata_extractor", TopicPostsCreated, b.pubsub, b.consume)
	b.router = router
	return b, nil
}

// Start runs the router and returns once it is consuming.
func (b *Bus) Start() error {
	go func() {
		if err := b.router.Run(context.Background()); err != nil {
			b.logger.Error("trigger: router stopped", "error", err)
		}
	}()
	<-b.router.Running()
	b.logger.Info("trigger: consuming", "topic", TopicPostsCreated)
	return nil
}

// Stop closes the router, waiting for in-flight handlers, then the topic.
func (b *Bus) Stop(_ context.Context) error {
	if err := b.router.Close(); err != nil {
		return fmt.Errorf("trigger: close router: %w", err)
	}
	return b.pubsub.Close()
}

// Publish enqueues a creation event.
func (b *Bus) Publish(evt PostCreated) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("trigger: encode event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicPostsCreated, msg); err != nil {
		return fmt.Errorf("trigger: publish: %w", err)
	}
	return nil
}

// HandleWebhook validates a webhook body and publishes it.
func (b *Bus) HandleWebhook(_ context.Context, _ string, body []byte, _ http.Header) error {
	evt, err := DecodePostCreated(body)
	if err != nil {
		return err
	}
	return b.Publish(evt)
}

// DecodePostCreated parses a webhook body. The post ID is required.
func DecodePostCreated(body []byte) (PostCreated, error) {
	var evt PostCreated
	if err := json.Unmarshal(body, &evt); err != nil {
		return PostCreated{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if evt.ID == "" {
		return PostCreated{}, fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	return evt, nil
}

func (b *Bus) consume(msg *message.Message) error {
	var evt PostCreated
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		b.logger.Warn("trigger: dropping undecodable message", "message_uuid", msg.UUID, "error", err)
		return nil
	}
	post, err := model.PostFromData(evt.ID, evt.Data)
	if err != nil {
		b.logger.Warn("trigger: dropping invalid post", "post", evt.ID, "error", err)
		return nil
	}
	return b.handler.Handle(msg.Context(), evt.ID, post)
}

// dropExhausted acks a message whose retries are used up. The gochannel
// topic would otherwise redeliver a nacked message forever.
func (b *Bus) dropExhausted(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			b.logger.Error("trigger: delivery failed after retries", "message_uuid", msg.UUID, "error", err)
			return nil, nil
		}
		return out, nil
	}
}
