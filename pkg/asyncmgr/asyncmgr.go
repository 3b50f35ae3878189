// Package asyncmgr implements the asynchronous update manager: a single
// owning goroutine serializes every mutation against a relation tree's
// base sources, applies the resulting delta through a differentiate
// .Derivative, and notifies an observer.Registry through the three-phase
// willChange/changing/didChange protocol — synchronously for sync-delta
// observers, off a worker pool for async-delta and async-content ones.
//
// Grounded on the teacher's pkg/cache.ViewCacheInformer event-dispatch loop
// (TriggerEvent fans a change out to every registered handler) and
// pkg/view.BaseView's single-writer reconciliation discipline; the worker
// pool is panjf2000/ants, the same one the teacher uses for parallel
// reconciliation.
package asyncmgr

import (
	"context"
	"runtime"
	"sync"

	"github.com/go-logr/logr"
	"github.com/panjf2000/ants/v2"

	"github.com/l7mp/reldb/pkg/differentiate"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/observer"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// State is the manager's lifecycle state, reported by State() for tests
// and diagnostics.
type State int

const (
	StateIdle State = iota
	StatePending
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "<unknown>"
	}
}

// MutableSource is a base source a Manager can mutate: a relation.Source
// that also accepts writes. *changelog.Relation satisfies this directly.
type MutableSource interface {
	relation.Source
	Add(ctx context.Context, row value.Row) error
	Delete(ctx context.Context, pred *expr.Expression) error
	Update(ctx context.Context, pred *expr.Expression, newValues value.Row) error
}

type kind int

const (
	kindAdd kind = iota
	kindDelete
	kindUpdate
	kindRestoreSnapshot
	kindQuery
)

type action struct {
	kind    kind
	source  MutableSource
	row     value.Row
	pred    *expr.Expression
	updates value.Row

	// restoreSources/restore implement kindRestoreSnapshot: restore is
	// the caller's closure performing the actual restoration (e.g.
	// txdb.Database.RestoreSnapshot), restoreSources names every
	// MutableSource it might affect so the drain can compute each
	// one's before/after delta the same way it does for add/delete/update.
	restoreSources []MutableSource
	restore        func(ctx context.Context) error

	// query implements kindQuery: an arbitrary read executed inside the
	// drain so it observes a consistent, serialized view of the tree.
	query func(ctx context.Context, content relation.RowSet) error

	done chan error
}

type drainMarker struct{}

var drainKey = drainMarker{}

func withDrain(ctx context.Context) context.Context {
	return context.WithValue(ctx, drainKey, true)
}

func insideDrain(ctx context.Context) bool {
	v, _ := ctx.Value(drainKey).(bool)
	return v
}

// Manager is the asynchronous update manager for one relation tree.
type Manager struct {
	mu      sync.Mutex
	state   State
	queue   []action
	wake    chan struct{}
	stopped chan struct{}

	root     *relation.Relation
	deriv    *differentiate.Derivative
	registry *observer.Registry
	pool     *ants.Pool

	logger logr.Logger
}

// New creates a Manager over root, seeding its differentiator via
// differentiate.Build and starting the owning goroutine. poolSize sizes
// the worker pool async observers dispatch through; 0 defaults to
// runtime.GOMAXPROCS(0).
func New(ctx context.Context, root *relation.Relation, registry *observer.Registry, poolSize int, logger logr.Logger) (*Manager, error) {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	deriv, err := differentiate.Build(ctx, root, logger)
	if err != nil {
		return nil, err
	}
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, NewPoolError(err)
	}
	m := &Manager{
		state:    StateIdle,
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
		root:     root,
		deriv:    deriv,
		registry: registry,
		pool:     pool,
		logger:   logger.WithName("asyncmgr"),
	}
	go m.run(ctx)
	return m, nil
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stop lets the manager finish any in-flight drain and then exits its
// owning goroutine; Enqueue calls made after Stop return ErrStopped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state == StateStopping {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	m.mu.Unlock()
	m.wakeUp()
	<-m.stopped
	m.pool.Release()
}

func (m *Manager) enqueue(ctx context.Context, a action) error {
	m.mu.Lock()
	if m.state == StateStopping {
		m.mu.Unlock()
		return NewStoppedError()
	}
	m.queue = append(m.queue, a)
	if m.state == StateIdle {
		m.state = StatePending
	}
	m.mu.Unlock()
	m.wakeUp()

	if insideDrain(ctx) {
		// A mutation issued from inside an observer callback cannot
		// block on its own completion: that would deadlock the one
		// goroutine that would have to drain it. It is queued for
		// the following drain and reported as accepted.
		return nil
	}
	select {
	case err := <-a.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) wakeUp() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Add enqueues a row insertion against src, blocking until it has been
// applied and every sync-delta observer has seen the resulting delta.
// Async observers are dispatched onto the worker pool and may still be
// running when Add returns.
func (m *Manager) Add(ctx context.Context, src MutableSource, row value.Row) error {
	return m.enqueue(ctx, action{kind: kindAdd, source: src, row: row, done: make(chan error, 1)})
}

// Delete enqueues a predicate-matched deletion against src.
func (m *Manager) Delete(ctx context.Context, src MutableSource, pred *expr.Expression) error {
	return m.enqueue(ctx, action{kind: kindDelete, source: src, pred: pred, done: make(chan error, 1)})
}

// Update enqueues a predicate-matched update against src.
func (m *Manager) Update(ctx context.Context, src MutableSource, pred *expr.Expression, updates value.Row) error {
	return m.enqueue(ctx, action{kind: kindUpdate, source: src, pred: pred, updates: updates, done: make(chan error, 1)})
}

// RestoreSnapshot enqueues restore, computing the delta against every
// source in sources by comparing its rows before and after restore runs.
func (m *Manager) RestoreSnapshot(ctx context.Context, sources []MutableSource, restore func(ctx context.Context) error) error {
	return m.enqueue(ctx, action{kind: kindRestoreSnapshot, restoreSources: sources, restore: restore, done: make(chan error, 1)})
}

// Query enqueues a read-only action that runs inside a drain so it
// observes the tree in a state no concurrent mutation can change out from
// under it; content is the query relation's current materialized result.
func (m *Manager) Query(ctx context.Context, query func(ctx context.Context, content relation.RowSet) error) error {
	return m.enqueue(ctx, action{kind: kindQuery, query: query, done: make(chan error, 1)})
}

// Snapshot returns the root relation's current materialized result,
// computed inside a drain via Query so it is never read mid-mutation.
func (m *Manager) Snapshot(ctx context.Context) (relation.RowSet, error) {
	var content relation.RowSet
	err := m.Query(ctx, func(_ context.Context, c relation.RowSet) error {
		content = c
		return nil
	})
	return content, err
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.stopped)
	for {
		select {
		case <-ctx.Done():
			m.drain(ctx)
			return
		case <-m.wake:
			m.drain(ctx)
			m.mu.Lock()
			stopping := m.state == StateStopping
			empty := len(m.queue) == 0
			m.mu.Unlock()
			if stopping && empty {
				return
			}
		}
	}
}

func (m *Manager) drain(ctx context.Context) {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	if len(batch) == 0 {
		if m.state != StateStopping {
			m.state = StateIdle
		}
		m.mu.Unlock()
		return
	}
	if m.state != StateStopping {
		m.state = StateRunning
	}
	m.mu.Unlock()

	drainCtx := withDrain(ctx)
	baseChanges := map[relation.Source]differentiate.Change{}
	errs := make([]error, len(batch))
	for i := range batch {
		errs[i] = m.perform(drainCtx, &batch[i], baseChanges)
	}

	change, err := m.deriv.Apply(drainCtx, baseChanges)
	if err != nil {
		m.logger.Error(err, "applying round to derivative")
	}
	if !change.IsZero() {
		m.notify(drainCtx, change)
	}
	for i := range batch {
		batch[i].done <- errs[i]
	}

	m.mu.Lock()
	if m.state != StateStopping {
		m.state = StateIdle
	}
	m.mu.Unlock()
}

// perform executes one queued action against its source(s), folding its
// before/after row-set difference into baseChanges.
func (m *Manager) perform(ctx context.Context, a *action, baseChanges map[relation.Source]differentiate.Change) error {
	switch a.kind {
	case kindAdd:
		before, err := a.source.Rows(ctx)
		if err != nil {
			return err
		}
		if err := a.source.Add(ctx, a.row); err != nil {
			return err
		}
		return m.foldSourceDelta(ctx, a.source, before, baseChanges)

	case kindDelete:
		before, err := a.source.Rows(ctx)
		if err != nil {
			return err
		}
		if err := a.source.Delete(ctx, a.pred); err != nil {
			return err
		}
		return m.foldSourceDelta(ctx, a.source, before, baseChanges)

	case kindUpdate:
		before, err := a.source.Rows(ctx)
		if err != nil {
			return err
		}
		if err := a.source.Update(ctx, a.pred, a.updates); err != nil {
			return err
		}
		return m.foldSourceDelta(ctx, a.source, before, baseChanges)

	case kindRestoreSnapshot:
		befores := make([]relation.RowSet, len(a.restoreSources))
		for i, src := range a.restoreSources {
			b, err := src.Rows(ctx)
			if err != nil {
				return err
			}
			befores[i] = b
		}
		if err := a.restore(ctx); err != nil {
			return err
		}
		for i, src := range a.restoreSources {
			if err := m.foldSourceDelta(ctx, src, befores[i], baseChanges); err != nil {
				return err
			}
		}
		return nil

	case kindQuery:
		return a.query(ctx, m.deriv.Current(m.root))

	default:
		return NewUnknownActionError()
	}
}

func (m *Manager) foldSourceDelta(ctx context.Context, src MutableSource, before relation.RowSet, baseChanges map[relation.Source]differentiate.Change) error {
	after, err := src.Rows(ctx)
	if err != nil {
		return err
	}
	c := differentiate.Change{Added: after.Difference(before), Removed: before.Difference(after)}
	if c.IsZero() {
		return nil
	}
	existing := baseChanges[src]
	baseChanges[src] = differentiate.Change{
		Added:   existing.Added.Union(c.Added).Difference(c.Removed),
		Removed: existing.Removed.Union(c.Removed).Difference(c.Added),
	}
	return nil
}

// notify drives the three-phase protocol: every sync-delta observer sees
// WillChange/Changing/DidChange in order on this goroutine before drain
// returns; async-delta and async-content observers are dispatched onto the
// worker pool and may still be running after it returns.
func (m *Manager) notify(ctx context.Context, change differentiate.Change) {
	syncObservers := m.registry.SyncDeltaObservers()
	for _, o := range syncObservers {
		o.WillChange(ctx)
	}
	for _, o := range syncObservers {
		if err := o.Changing(ctx, change); err != nil {
			m.logger.Error(err, "sync delta observer failed")
		}
	}
	for _, o := range syncObservers {
		o.DidChange(ctx)
	}

	for _, o := range m.registry.AsyncDeltaObservers() {
		o := o
		if err := m.pool.Submit(func() {
			o.WillChange(ctx)
			if err := o.Changing(ctx, change); err != nil {
				m.logger.Error(err, "async delta observer failed")
			}
			o.DidChange(ctx)
		}); err != nil {
			m.logger.Error(err, "submitting async delta observer")
		}
	}

	content := m.deriv.Current(m.root)
	for _, o := range m.registry.AsyncContentObservers() {
		o := o
		if err := m.pool.Submit(func() {
			o.WillChange(ctx)
			if err := o.Changing(ctx, content); err != nil {
				m.logger.Error(err, "async content observer failed")
			}
			o.DidChange(ctx)
		}); err != nil {
			m.logger.Error(err, "submitting async content observer")
		}
	}
}
