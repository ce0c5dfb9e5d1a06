package docstore

import (
	"context"
	"errors"
	"testing"
)

func seed(t *testing.T, s *MemoryStore, collection, id string, data map[string]any) Ref {
	t.Helper()
	ref := Ref{Collection: collection, ID: id}
	if err := s.Set(context.Background(), ref, data); err != nil {
		t.Fatalf("Set %s: %v", ref.Path(), err)
	}
	return ref
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	seed(t, s, "stories", "a", map[string]any{"expiresAt": int64(100)})
	seed(t, s, "stories", "b", map[string]any{"expiresAt": int64(200)})
	seed(t, s, "stories", "c", map[string]any{"expiresAt": float64(300)})
	seed(t, s, "stories", "d", map[string]any{"other": true})

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"lte", Where("expiresAt", OpLte, int64(200)), []string{"a", "b"}},
		{"lt", Where("expiresAt", OpLt, 200), []string{"a"}},
		{"gt mixed numeric", Where("expiresAt", OpGt, int64(150)), []string{"b", "c"}},
		{"gte", Where("expiresAt", OpGte, 300.0), []string{"c"}},
		{"eq", Where("expiresAt", OpEq, 100), []string{"a"}},
		{"exists", Where("other", OpExists, nil), []string{"d"}},
		{"in", Where("expiresAt", OpIn, []int64{100, 300}), []string{"a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, "stories", tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("got %d docs, want %d", len(docs), len(tt.want))
			}
			for i, d := range docs {
				if d.Ref.ID != tt.want[i] {
					t.Errorf("docs[%d] = %s, want %s", i, d.Ref.ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStore_QueryTypeMismatchNeverMatches(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seed(t, s, "users", "u1", map[string]any{"displayName": "alice"})

	docs, err := s.Query(context.Background(), "users", Where("displayName", OpEq, 1))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d docs, want 0", len(docs))
	}
}

func TestMemoryStore_QueryInvalidFilter(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()

	_, err := s.Query(context.Background(), "users", Where("displayName", OpIn, "alice"))
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("err = %v, want ErrInvalidFilter", err)
	}
	_, err = s.Query(context.Background(), "users", Where("x", Op("~"), 1))
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestMemoryStore_SubCollections(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	seed(t, s, Collection("conversations", "c1", "messages"), "m1", map[string]any{"disappearAfter": 1})
	seed(t, s, Collection("conversations", "c2", "messages"), "m2", map[string]any{"disappearAfter": 1})

	docs, err := s.Query(context.Background(), "conversations/c1/messages")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 1 || docs[0].Ref.ID != "m1" {
		t.Errorf("docs = %+v, want only m1", docs)
	}
}

func TestMemoryStore_BatchDeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	ref := seed(t, s, "stories", "a", map[string]any{"expiresAt": 1})

	for range 2 {
		b := s.Batch()
		b.Delete(ref)
		if err := b.Commit(ctx); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	if _, err := s.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_BatchIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	a := seed(t, s, "posts", "a", map[string]any{"n": 1})

	b := s.Batch()
	b.Delete(a)
	b.Update(Ref{Collection: "posts", ID: "missing"}, map[string]any{"n": 2})
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
	if err := b.Commit(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Commit err = %v, want ErrNotFound", err)
	}

	if _, err := s.Get(ctx, a); err != nil {
		t.Errorf("document deleted despite failed batch: %v", err)
	}
}

func TestMemoryStore_UpdateMerges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	ref := seed(t, s, "posts", "p", map[string]any{"textContent": "hi", "hashtags": []any{"#old"}})

	if err := s.Update(ctx, ref, map[string]any{"hashtags": []string{"#new"}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	doc, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Data["textContent"] != "hi" {
		t.Errorf("textContent lost: %v", doc.Data)
	}
	tags, _ := doc.Data["hashtags"].([]string)
	if len(tags) != 1 || tags[0] != "#new" {
		t.Errorf("hashtags = %v, want [#new]", doc.Data["hashtags"])
	}

	err = s.Update(ctx, Ref{Collection: "posts", ID: "nope"}, map[string]any{"x": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_CreateGeneratesIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	r1, err := s.Create(ctx, "posts", map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r2, err := s.Create(ctx, "posts", map[string]any{"n": 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r1.ID == "" || r1.ID == r2.ID {
		t.Errorf("ids not unique: %q %q", r1.ID, r2.ID)
	}
	if s.Len("posts") != 2 {
		t.Errorf("Len = %d, want 2", s.Len("posts"))
	}
}

func TestMemoryStore_ReturnedDataIsACopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	ref := seed(t, s, "posts", "p", map[string]any{"going": []any{"u1"}})

	doc, _ := s.Get(ctx, ref)
	doc.Data["going"].([]any)[0] = "mutated"

	again, _ := s.Get(ctx, ref)
	if again.Data["going"].([]any)[0] != "u1" {
		t.Error("stored data mutated through returned document")
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Query(ctx, "stories"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestWriteBatch_EmptyCommitSkipsStore(t *testing.T) {
	t.Parallel()
	called := false
	b := NewWriteBatch(func(context.Context, []Write) error {
		called = true
		return nil
	})
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if called {
		t.Error("empty batch should not reach the store")
	}
}

func TestRef_Path(t *testing.T) {
	t.Parallel()
	ref := Ref{Collection: Collection("conversations", "c1", "messages"), ID: "m1"}
	if got := ref.Path(); got != "conversations/c1/messages/m1" {
		t.Errorf("Path = %q", got)
	}
}
