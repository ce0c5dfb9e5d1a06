package model

import (
	"time"

	"github.com/flemzord/ephemera/internal/docstore"
)

// Event is a post of type "event" with RSVP lists and reminder flags.
type Event struct {
	ID         string
	Name       string
	Date       time.Time
	Going      []string
	Interested []string
	Sent24h    bool
	Sent2h     bool
}

// EventFromDocument decodes an event post.
func EventFromDocument(doc docstore.Document) (Event, error) {
	var (
		e   = Event{ID: doc.Ref.ID}
		err error
	)
	if e.Date, err = requiredTime(doc, FieldEventDate); err != nil {
		return Event{}, err
	}
	if e.Name, err = optionalString(doc, FieldEventName); err != nil {
		return Event{}, err
	}
	if e.Going, err = optionalStrings(doc, FieldGoing); err != nil {
		return Event{}, err
	}
	if e.Interested, err = optionalStrings(doc, FieldInterested); err != nil {
		return Event{}, err
	}
	if e.Sent24h, err = optionalBool(doc, FieldSent24hReminder); err != nil {
		return Event{}, err
	}
	if e.Sent2h, err = optionalBool(doc, FieldSent2hReminder); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Data encodes the event for storage.
func (e Event) Data() map[string]any {
	return map[string]any{
		FieldPostType:        PostTypeEvent,
		FieldEventName:       e.Name,
		FieldEventDate:       Millis(e.Date),
		FieldGoing:           stringsToAny(e.Going),
		FieldInterested:      stringsToAny(e.Interested),
		FieldSent24hReminder: e.Sent24h,
		FieldSent2hReminder:  e.Sent2h,
	}
}

// Recipients concatenates the going and interested lists. Identifiers in
// both lists appear twice.
func (e Event) Recipients() []string {
	out := make([]string, 0, len(e.Going)+len(e.Interested))
	out = append(out, e.Going...)
	return append(out, e.Interested...)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
