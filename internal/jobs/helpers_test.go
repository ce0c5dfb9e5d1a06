package jobs_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/ephemera/internal/docstore"
	"github.com/flemzord/ephemera/internal/jobs"
	"github.com/flemzord/ephemera/internal/notify/notifytest"
	"github.com/flemzord/ephemera/internal/objstore/objstoretest"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// faultyStore wraps a MemoryStore with injectable failures and call counts.
type faultyStore struct {
	*docstore.MemoryStore

	QueryErr  func(collection string) error
	UpdateErr func(ref docstore.Ref) error
	CommitErr func(refs []docstore.Ref) error

	mu      sync.Mutex
	updates int
	commits int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: docstore.NewMemoryStore()}
}

func (s *faultyStore) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if s.QueryErr != nil {
		if err := s.QueryErr(collection); err != nil {
			return nil, err
		}
	}
	return s.MemoryStore.Query(ctx, collection, filters...)
}

func (s *faultyStore) Update(ctx context.Context, ref docstore.Ref, fields map[string]any) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	if s.UpdateErr != nil {
		if err := s.UpdateErr(ref); err != nil {
			return err
		}
	}
	return s.MemoryStore.Update(ctx, ref, fields)
}

func (s *faultyStore) Batch() docstore.Batch {
	return &faultyBatch{Batch: s.MemoryStore.Batch(), store: s}
}

func (s *faultyStore) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func (s *faultyStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

type faultyBatch struct {
	docstore.Batch
	store *faultyStore
	refs  []docstore.Ref
}

func (b *faultyBatch) Delete(ref docstore.Ref) {
	b.refs = append(b.refs, ref)
	b.Batch.Delete(ref)
}

func (b *faultyBatch) Commit(ctx context.Context) error {
	b.store.mu.Lock()
	b.store.commits++
	b.store.mu.Unlock()
	if b.store.CommitErr != nil {
		if err := b.store.CommitErr(b.refs); err != nil {
			return err
		}
	}
	return b.Batch.Commit(ctx)
}

type fixture struct {
	store   *faultyStore
	objects *objstoretest.Recorder
	sender  *notifytest.Recorder
	now     time.Time
}

func newFixture() *fixture {
	return &fixture{
		store:   newFaultyStore(),
		objects: &objstoretest.Recorder{},
		sender:  &notifytest.Recorder{},
		now:     baseTime,
	}
}

func (f *fixture) deps() jobs.Deps {
	return jobs.Deps{
		Store:          f.store,
		Objects:        f.objects,
		Sender:         f.sender,
		Logger:         slog.New(slog.DiscardHandler),
		Now:            func() time.Time { return f.now },
		MaxConcurrency: 4,
	}
}

func (f *fixture) seed(t *testing.T, collection, id string, data map[string]any) docstore.Ref {
	t.Helper()
	ref := docstore.Ref{Collection: collection, ID: id}
	if err := f.store.Set(context.Background(), ref, data); err != nil {
		t.Fatalf("seed %s: %v", ref.Path(), err)
	}
	return ref
}

func (f *fixture) exists(t *testing.T, ref docstore.Ref) bool {
	t.Helper()
	_, err := f.store.Get(context.Background(), ref)
	return err == nil
}
