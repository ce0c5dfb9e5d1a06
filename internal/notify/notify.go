// Package notify delivers user notifications produced by the maintenance jobs.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sender delivers a message to a single recipient. A nil error acknowledges
// the hand-off to the transport, not delivery to a device.
type Sender interface {
	Send(ctx context.Context, recipientID, message string) error
}

// Notification is the payload pushed to clients.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

// NewNotification stamps a message with a fresh ID and the current time.
func NewNotification(recipientID, message string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Message:     message,
		SentAt:      time.Now().UTC(),
	}
}

// LogSender only logs the notification.
type LogSender struct {
	Logger *slog.Logger
}

// Compile-time interface check.
var _ Sender = (*LogSender)(nil)

// NewLogSender returns a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, recipientID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := NewNotification(recipientID, message)
	s.Logger.Info("notify: send",
		"id", n.ID,
		"recipient", recipientID,
		"message", message,
	)
	return nil
}
