package model

import "github.com/flemzord/ephemera/internal/docstore"

// User is the lookup target for mention resolution.
type User struct {
	ID          string
	DisplayName string
}

// UserFromDocument decodes a users document.
func UserFromDocument(doc docstore.Document) (User, error) {
	name, err := optionalString(doc, FieldDisplayName)
	if err != nil {
		return User{}, err
	}
	if name == "" {
		return User{}, invalid(doc, "missing %s", FieldDisplayName)
	}
	return User{ID: doc.Ref.ID, DisplayName: name}, nil
}

// Data encodes the user for storage.
func (u User) Data() map[string]any {
	return map[string]any{FieldDisplayName: u.DisplayName}
}
