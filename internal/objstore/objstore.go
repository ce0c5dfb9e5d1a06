// Package objstore deletes stored media objects and maps download URLs back
// to object paths.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

var (
	// ErrNotFound indicates the object does not exist.
	ErrNotFound = errors.New("objstore: object not found")

	// ErrMalformedURL indicates a download URL without a recoverable object path.
	ErrMalformedURL = errors.New("objstore: malformed download URL")

	// ErrInvalidPath indicates an object path that escapes the bucket.
	ErrInvalidPath = errors.New("objstore: invalid object path")
)

// Store deletes objects by path.
type Store interface {
	Delete(ctx context.Context, path string) error
}

const (
	objectMarker = "/o/"
	querySuffix  = "?alt=media"
)

// PathFromURL extracts the object path from a download URL of the form
//
//	https://host/v0/b/<bucket>/o/<url-encoded-path>?alt=media&token=...
//
// The path is the segment strictly between the first "/o/" and the following
// "?alt=media", percent-decoded. Missing markers, an empty segment, a bad
// escape sequence, or escapes that decode to invalid UTF-8 yield
// ErrMalformedURL.
func PathFromURL(rawURL string) (string, error) {
	_, rest, ok := strings.Cut(rawURL, objectMarker)
	if !ok {
		return "", fmt.Errorf("%w: missing %q in %q", ErrMalformedURL, objectMarker, rawURL)
	}
	segment, _, ok := strings.Cut(rest, querySuffix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q in %q", ErrMalformedURL, querySuffix, rawURL)
	}
	if segment == "" {
		return "", fmt.Errorf("%w: empty object path in %q", ErrMalformedURL, rawURL)
	}
	path, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if !utf8.ValidString(path) {
		return "", fmt.Errorf("%w: object path %q is not valid UTF-8", ErrMalformedURL, segment)
	}
	return path, nil
}
