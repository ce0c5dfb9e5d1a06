// Package model maps store documents to typed records. Decoding rejects
// documents missing required fields and ignores unknown ones.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/ephemera/internal/docstore"
)

// Collection names.
const (
	CollectionStories       = "stories"
	CollectionConversations = "conversations"
	CollectionMessages      = "messages"
	CollectionPosts         = "posts"
	CollectionUsers         = "users"
)

// PostTypeEvent marks posts that are scheduled events.
const PostTypeEvent = "event"

// Field names as stored.
const (
	FieldExpiresAt        = "expiresAt"
	FieldMediaURL         = "mediaUrl"
	FieldTimestamp        = "timestamp"
	FieldDisappearAfter   = "disappearAfter"
	FieldPostType         = "postType"
	FieldEventName        = "eventName"
	FieldEventDate        = "eventDate"
	FieldGoing            = "going"
	FieldInterested       = "interested"
	FieldSent24hReminder  = "sent24HourReminder"
	FieldSent2hReminder   = "sent2HourReminder"
	FieldTextContent      = "textContent"
	FieldAuthorID         = "authorId"
	FieldHashtags         = "hashtags"
	FieldMentionedUserIDs = "mentionedUserIds"
	FieldDisplayName      = "displayName"
)

// ErrInvalidDocument indicates a document that cannot be decoded.
var ErrInvalidDocument = errors.New("model: invalid document")

// MessagesCollection returns the messages sub-collection of a conversation.
func MessagesCollection(conversationID string) string {
	return docstore.Collection(CollectionConversations, conversationID, CollectionMessages)
}

// Millis encodes a timestamp as stored: Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

func invalid(doc docstore.Document, format string, args ...any) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidDocument, doc.Ref.Path(), fmt.Sprintf(format, args...))
}

func requiredTime(doc docstore.Document, field string) (time.Time, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return time.Time{}, invalid(doc, "missing %s", field)
	}
	ms, ok := docstore.ToFloat(v)
	if !ok {
		return time.Time{}, invalid(doc, "%s is %T, want timestamp", field, v)
	}
	return time.UnixMilli(int64(ms)), nil
}

func optionalString(doc docstore.Document, field string) (string, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(doc, "%s is %T, want string", field, v)
	}
	return s, nil
}

func optionalNumber(doc docstore.Document, field string) (float64, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := docstore.ToFloat(v)
	if !ok {
		return 0, invalid(doc, "%s is %T, want number", field, v)
	}
	return n, nil
}

func optionalBool(doc docstore.Document, field string) (bool, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(doc, "%s is %T, want bool", field, v)
	}
	return b, nil
}

func optionalStrings(doc docstore.Document, field string) ([]string, error) {
	v, ok := doc.Data[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, 0, len(vs))
		for i, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(doc, "%s[%d] is %T, want string", field, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, invalid(doc, "%s is %T, want list of strings", field, v)
}
