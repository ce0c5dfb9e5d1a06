// Package objstoretest provides test doubles for the objstore package.
package objstoretest

import (
	"context"
	"slices"
	"sync"

	"github.com/flemzord/ephemera/internal/objstore"
)

// Recorder is a configurable objstore.Store that records every Delete call.
type Recorder struct {
	// DeleteFunc, if set, decides the result of each Delete.
	DeleteFunc func(ctx context.Context, path string) error

	mu      sync.Mutex
	deleted []string
}

// Compile-time interface check.
var _ objstore.Store = (*Recorder)(nil)

// Delete implements objstore.Store.
func (r *Recorder) Delete(ctx context.Context, path string) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, path)
	r.mu.Unlock()

	if r.DeleteFunc != nil {
		return r.DeleteFunc(ctx, path)
	}
	return nil
}

// Deleted returns the paths passed to Delete, sorted.
func (r *Recorder) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.deleted)
	slices.Sort(out)
	return out
}
