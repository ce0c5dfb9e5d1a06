package docstore

import "errors"

var (
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrInvalidFilter indicates an unsupported operator or a malformed value.
	ErrInvalidFilter = errors.New("docstore: invalid filter")
)
