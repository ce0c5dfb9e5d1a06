package model

import (
	"time"

	"github.com/flemzord/ephemera/internal/docstore"
)

// Story is time-boxed content with an optional media attachment. Once
// expired, the document and its media are removed together.
type Story struct {
	ID        string
	ExpiresAt time.Time
	// MediaURL is the store-issued download URL; empty when absent.
	MediaURL string
}

// StoryFromDocument decodes a stories document.
func StoryFromDocument(doc docstore.Document) (Story, error) {
	expiresAt, err := requiredTime(doc, FieldExpiresAt)
	if err != nil {
		return Story{}, err
	}
	mediaURL, err := optionalString(doc, FieldMediaURL)
	if err != nil {
		return Story{}, err
	}
	return Story{ID: doc.Ref.ID, ExpiresAt: expiresAt, MediaURL: mediaURL}, nil
}

// Data encodes the story for storage.
func (s Story) Data() map[string]any {
	data := map[string]any{FieldExpiresAt: Millis(s.ExpiresAt)}
	if s.MediaURL != "" {
		data[FieldMediaURL] = s.MediaURL
	}
	return data
}
