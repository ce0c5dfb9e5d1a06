package docstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is a thread-safe, in-memory Store. Queries scan the whole
// collection; it is meant for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
	}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// Query implements Store. Results are ordered by document ID.
func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for id, data := range s.collections[collection] {
		if !matchesAll(data, filters) {
			continue
		}
		docs = append(docs, Document{
			Ref:  Ref{Collection: collection, ID: id},
			Data: cloneData(data),
		})
	}
	slices.SortFunc(docs, func(a, b Document) int {
		return cmp.Compare(a.Ref.ID, b.Ref.ID)
	})
	return docs, nil
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(data) {
			return false
		}
	}
	return true
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, ref Ref) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, ref.Path())
	}
	return Document{Ref: ref, Data: cloneData(data)}, nil
}

// Create implements Store. IDs are ULIDs.
func (s *MemoryStore) Create(ctx context.Context, collection string, data map[string]any) (Ref, error) {
	ref := Ref{Collection: collection, ID: ulid.Make().String()}
	if err := s.Set(ctx, ref, data); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, ref Ref, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[ref.Collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.collections[ref.Collection] = coll
	}
	coll[ref.ID] = cloneData(data)
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	return s.apply(ctx, []Write{{Kind: WriteUpdate, Ref: ref, Fields: fields}})
}

// Batch implements Store.
func (s *MemoryStore) Batch() Batch {
	return NewWriteBatch(s.apply)
}

// apply validates every write under the lock before mutating anything, so a
// failing write leaves the store untouched.
func (s *MemoryStore) apply(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make(map[Ref]bool)
	for _, w := range writes {
		switch w.Kind {
		case WriteDelete:
			deleted[w.Ref] = true
		case WriteUpdate:
			if _, ok := s.collections[w.Ref.Collection][w.Ref.ID]; !ok || deleted[w.Ref] {
				return fmt.Errorf("%w: %s", ErrNotFound, w.Ref.Path())
			}
		}
	}

	for _, w := range writes {
		coll := s.collections[w.Ref.Collection]
		switch w.Kind {
		case WriteDelete:
			delete(coll, w.Ref.ID)
		case WriteUpdate:
			doc := coll[w.Ref.ID]
			for k, v := range w.Fields {
				doc[k] = cloneValue(v)
			}
		}
	}
	return nil
}

// Len returns the number of documents in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
