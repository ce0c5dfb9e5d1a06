// Package docstore defines the document store used by the maintenance jobs:
// filtered queries over collections and sub-collections, merge updates, and
// atomic multi-document batches.
package docstore

import (
	"context"
	"strings"
)

// Ref addresses a single document.
type Ref struct {
	// Collection is the slash-separated collection path, e.g. "stories" or
	// "conversations/c1/messages".
	Collection string
	ID         string
}

// Path returns the full document path.
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Collection joins path segments into a collection path. Sub-collections
// alternate collection and document IDs:
//
//	Collection("conversations", convID, "messages")
func Collection(segments ...string) string {
	return strings.Join(segments, "/")
}

// Op is a filter comparison operator.
type Op string

// Supported filter operators.
const (
	OpEq     Op = "=="
	OpLt     Op = "<"
	OpLte    Op = "<="
	OpGt     Op = ">"
	OpGte    Op = ">="
	OpIn     Op = "in"
	OpExists Op = "exists"
)

// Filter restricts a query to documents whose Field satisfies Op against Value.
// For OpIn, Value must be a slice. OpExists ignores Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Document is a stored document. Data holds JSON-compatible values:
// strings, numbers, bools, nil, []any and map[string]any.
type Document struct {
	Ref  Ref
	Data map[string]any
}

// Store is the document store used by jobs. Implementations must be safe for
// concurrent use.
type Store interface {
	// Query returns all documents in collection matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Get returns a single document or ErrNotFound.
	Get(ctx context.Context, ref Ref) (Document, error)

	// Create stores data under a newly generated ID.
	Create(ctx context.Context, collection string, data map[string]any) (Ref, error)

	// Set creates or fully replaces a document.
	Set(ctx context.Context, ref Ref, data map[string]any) error

	// Update merges fields into an existing document. Returns ErrNotFound
	// if the document does not exist.
	Update(ctx context.Context, ref Ref, fields map[string]any) error

	// Batch starts a new atomic batch.
	Batch() Batch
}

// Batch accumulates writes that commit atomically: all or none.
type Batch interface {
	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(ref Ref)

	// Update merges fields into an existing document. A missing document
	// fails the whole commit with ErrNotFound.
	Update(ref Ref, fields map[string]any)

	// Len returns the number of queued writes.
	Len() int

	// Commit applies all queued writes.
	Commit(ctx context.Context) error
}

// WriteKind identifies the kind of a queued batch write.
type WriteKind int

// Batch write kinds.
const (
	WriteDelete WriteKind = iota
	WriteUpdate
)

// Write is a single queued batch operation. Store implementations share it
// through WriteBatch.
type Write struct {
	Kind   WriteKind
	Ref    Ref
	Fields map[string]any
}

// WriteBatch is a Batch implementation that records writes and hands them to
// a commit function.
type WriteBatch struct {
	writes []Write
	commit func(ctx context.Context, writes []Write) error
}

// NewWriteBatch returns a batch that calls commit with the queued writes.
func NewWriteBatch(commit func(ctx context.Context, writes []Write) error) *WriteBatch {
	return &WriteBatch{commit: commit}
}

// Delete implements Batch.
func (b *WriteBatch) Delete(ref Ref) {
	b.writes = append(b.writes, Write{Kind: WriteDelete, Ref: ref})
}

// Update implements Batch.
func (b *WriteBatch) Update(ref Ref, fields map[string]any) {
	b.writes = append(b.writes, Write{Kind: WriteUpdate, Ref: ref, Fields: fields})
}

// Len implements Batch.
func (b *WriteBatch) Len() int { return len(b.writes) }

// Commit implements Batch. An empty batch commits without touching the store.
func (b *WriteBatch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}
	return b.commit(ctx, b.writes)
}
