// Package observer implements the registry a running query's changes are
// broadcast through. An observer is notified in three phases per drain —
// WillChange, Changing, DidChange — so it can, for instance, freeze a UI
// redraw for the duration of a batch rather than repainting once per
// queued action that happened to land in it. Every registered observer
// sees exactly one WillChange/Changing/DidChange triple per drain that
// changes the query's result, regardless of how many actions pkg/asyncmgr
// coalesced into it; a drain that leaves the result unchanged notifies
// no one.
//
// Grounded on the teacher's pkg/cache.ViewCacheInformer: a monotonic int64
// handler counter, an RWMutex-guarded map keyed by that counter, and an
// opaque registration handle returned to the caller for later removal.
package observer

import (
	"context"
	"sync"

	"github.com/l7mp/reldb/pkg/differentiate"
	"github.com/l7mp/reldb/pkg/relation"
)

// DeltaObserver receives a batch's row-level delta.
type DeltaObserver interface {
	WillChange(ctx context.Context)
	Changing(ctx context.Context, delta differentiate.Change) error
	DidChange(ctx context.Context)
}

// ContentObserver receives a batch's full materialized result instead of
// its delta, for observers that always want the current snapshot rather
// than folding deltas themselves.
type ContentObserver interface {
	WillChange(ctx context.Context)
	Changing(ctx context.Context, content relation.RowSet) error
	DidChange(ctx context.Context)
}

// mode identifies which of the registry's three maps a Handle refers to.
type mode int

const (
	modeSyncDelta mode = iota
	modeAsyncDelta
	modeAsyncContent
)

// Handle is the opaque token returned by a Register call, presented back
// to Remove to cancel a registration.
type Handle struct {
	id   int64
	mode mode
}

// Registry holds every observer registered against one running query.
// pkg/asyncmgr owns exactly one Registry per query and drives the three
// notification phases through its Sync/Async accessors.
type Registry struct {
	mu      sync.RWMutex
	counter int64

	syncDelta    map[int64]DeltaObserver
	asyncDelta   map[int64]DeltaObserver
	asyncContent map[int64]ContentObserver
}

// NewRegistry creates an empty observer registry.
func NewRegistry() *Registry {
	return &Registry{
		syncDelta:    map[int64]DeltaObserver{},
		asyncDelta:   map[int64]DeltaObserver{},
		asyncContent: map[int64]ContentObserver{},
	}
}

// RegisterSyncDelta registers o to be notified on the manager's own
// goroutine, in order, before the drain that produced its delta returns.
func (r *Registry) RegisterSyncDelta(o DeltaObserver) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	id := r.counter
	r.syncDelta[id] = o
	return Handle{id: id, mode: modeSyncDelta}
}

// RegisterAsyncDelta registers o to be notified off the worker pool,
// independently of when the triggering drain itself completes.
func (r *Registry) RegisterAsyncDelta(o DeltaObserver) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	id := r.counter
	r.asyncDelta[id] = o
	return Handle{id: id, mode: modeAsyncDelta}
}

// RegisterAsyncContent registers o to be notified off the worker pool with
// the query's full materialized content after each drain.
func (r *Registry) RegisterAsyncContent(o ContentObserver) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	id := r.counter
	r.asyncContent[id] = o
	return Handle{id: id, mode: modeAsyncContent}
}

// Remove cancels a registration. Removing an unknown or already-removed
// handle is a no-op.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch h.mode {
	case modeSyncDelta:
		delete(r.syncDelta, h.id)
	case modeAsyncDelta:
		delete(r.asyncDelta, h.id)
	case modeAsyncContent:
		delete(r.asyncContent, h.id)
	}
}

// SyncDeltaObservers returns a stable snapshot of every sync-delta
// observer, safe to iterate without holding the registry's lock.
func (r *Registry) SyncDeltaObservers() []DeltaObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeltaObserver, 0, len(r.syncDelta))
	for _, o := range r.syncDelta {
		out = append(out, o)
	}
	return out
}

// AsyncDeltaObservers returns a stable snapshot of every async-delta
// observer.
func (r *Registry) AsyncDeltaObservers() []DeltaObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeltaObserver, 0, len(r.asyncDelta))
	for _, o := range r.asyncDelta {
		out = append(out, o)
	}
	return out
}

// AsyncContentObservers returns a stable snapshot of every async-content
// observer.
func (r *Registry) AsyncContentObservers() []ContentObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ContentObserver, 0, len(r.asyncContent))
	for _, o := range r.asyncContent {
		out = append(out, o)
	}
	return out
}

// Len reports the total number of observers registered across all three
// flavors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.syncDelta) + len(r.asyncDelta) + len(r.asyncContent)
}
