// Package notifytest provides test doubles for the notify package.
package notifytest

import (
	"context"
	"sync"

	"github.com/flemzord/ephemera/internal/notify"
)

// Sent is one recorded Send call.
type Sent struct {
	RecipientID string
	Message     string
}

// Recorder is a notify.Sender that records every call.
type Recorder struct {
	// SendFunc, if set, decides the result of each Send.
	SendFunc func(ctx context.Context, recipientID, message string) error

	mu   sync.Mutex
	sent []Sent
}

// Compile-time interface check.
var _ notify.Sender = (*Recorder)(nil)

// Send implements notify.Sender.
func (r *Recorder) Send(ctx context.Context, recipientID, message string) error {
	r.mu.Lock()
	r.sent = append(r.sent, Sent{RecipientID: recipientID, Message: message})
	r.mu.Unlock()

	if r.SendFunc != nil {
		return r.SendFunc(ctx, recipientID, message)
	}
	return nil
}

// Sent returns a copy of all recorded calls in call order.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// Count returns how many sends went to recipientID with the given message.
// An empty message matches any message.
func (r *Recorder) Count(recipientID, message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.RecipientID == recipientID && (message == "" || s.Message == message) {
			n++
		}
	}
	return n
}

// Len returns the number of recorded calls.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
