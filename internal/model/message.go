package model

import (
	"time"

	"github.com/flemzord/ephemera/internal/docstore"
)

// Message is a chat message that may self-destruct.
type Message struct {
	ID        string
	Timestamp time.Time
	// DisappearAfter is the lifetime in hours; zero or less never expires.
	DisappearAfter float64
}

// MessageFromDocument decodes a conversation messages document.
func MessageFromDocument(doc docstore.Document) (Message, error) {
	ts, err := requiredTime(doc, FieldTimestamp)
	if err != nil {
		return Message{}, err
	}
	hours, err := optionalNumber(doc, FieldDisappearAfter)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: doc.Ref.ID, Timestamp: ts, DisappearAfter: hours}, nil
}

// Data encodes the message for storage.
func (m Message) Data() map[string]any {
	return map[string]any{
		FieldTimestamp:      Millis(m.Timestamp),
		FieldDisappearAfter: m.DisappearAfter,
	}
}

// Ephemeral reports whether the message has a disappear deadline.
func (m Message) Ephemeral() bool {
	return m.DisappearAfter > 0
}

// Deadline returns the disappear deadline: Timestamp + DisappearAfter hours.
func (m Message) Deadline() time.Time {
	return m.Timestamp.Add(time.Duration(m.DisappearAfter * float64(time.Hour)))
}

// ExpiredAt reports whether the message is past its deadline at now.
func (m Message) ExpiredAt(now time.Time) bool {
	return m.Ephemeral() && now.After(m.Deadline())
}
