// Package changelog implements the change-logging relation: a stored
// relation that records every mutation as an append-only log of Change
// entries rather than writing through to its backing storage.Adapter
// immediately. The current result is materialized on demand by folding
// the log over the adapter's last-saved rows; Save flushes the log to
// the adapter and clears it. Grounded on the teacher's
// mutation-as-cache-then-reconcile pattern in pkg/cache/view_cache.go,
// generalized from a Kubernetes object cache to the engine's
// Row/Scheme/Value model.
package changelog

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

// ChangeKind identifies what a Change entry represents.
type ChangeKind int

const (
	// ChangeUnion is the addition of a single row.
	ChangeUnion ChangeKind = iota
	// ChangeSelect is a deletion: every row matching Pred is removed,
	// i.e. the relation becomes select(relation, not Pred).
	ChangeSelect
	// ChangeUpdate overwrites NewValues on every row matching Pred.
	ChangeUpdate
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUnion:
		return "union"
	case ChangeSelect:
		return "select"
	case ChangeUpdate:
		return "update"
	default:
		return "<unknown>"
	}
}

// Change is one entry of a change-logging relation's log.
type Change struct {
	Kind      ChangeKind
	Row       value.Row        // ChangeUnion
	Pred      *expr.Expression // ChangeSelect, ChangeUpdate
	NewValues value.Row        // ChangeUpdate
}

// Snapshot is an opaque, in-memory copy of a Relation's log at a point in
// time. Per the engine's snapshot contract, this is never a wire format:
// restoring a Snapshot only ever happens against the same process.
type Snapshot struct {
	log []Change
}

// Relation is a change-logging relation over a storage.Adapter.
type Relation struct {
	mu      sync.RWMutex
	adapter storage.Adapter
	scheme  value.Scheme
	log     []Change
	current relation.RowSet // materialized view of adapter rows + log
	logger  logr.Logger
}

// New wraps adapter as a change-logging relation. If logger's sink is
// unset, logging is discarded, matching the teacher's convention.
func New(adapter storage.Adapter, logger logr.Logger) *Relation {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Relation{
		adapter: adapter,
		scheme:  adapter.Scheme(),
		logger:  logger.WithName("changelog"),
	}
}

func (r *Relation) Scheme() value.Scheme { return r.scheme.Clone() }

// Rows implements relation.Source: it returns the materialized result of
// the adapter's last-saved rows with every logged-but-unsaved change
// already applied.
func (r *Relation) Rows(ctx context.Context) (relation.RowSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.materializeLocked(ctx)
}

func (r *Relation) materializeLocked(ctx context.Context) (relation.RowSet, error) {
	if r.current != nil {
		return r.current.Clone(), nil
	}
	base, err := r.adapter.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range r.log {
		base = applyChange(base, c)
	}
	r.current = base
	return r.current.Clone(), nil
}

func applyChange(rows relation.RowSet, c Change) relation.RowSet {
	switch c.Kind {
	case ChangeUnion:
		rows.Add(c.Row)
		return rows
	case ChangeSelect:
		for _, row := range rows.Slice() {
			if ok, _ := c.Pred.Test(expr.EvalCtx{Object: row}); ok {
				rows.Remove(row)
			}
		}
		return rows
	case ChangeUpdate:
		for _, row := range rows.Slice() {
			ok, _ := c.Pred.Test(expr.EvalCtx{Object: row})
			if ok {
				rows.Remove(row)
				rows.Add(row.WithUpdates(c.NewValues))
			}
		}
		return rows
	default:
		return rows
	}
}

// Add appends a ChangeUnion entry for row and reflects it in the
// materialized view immediately; the underlying adapter is untouched
// until Save.
func (r *Relation) Add(ctx context.Context, row value.Row) error {
	if !row.Satisfies(r.scheme) {
		return storage.NewSchemeMismatchError(row.Scheme(), r.scheme)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.materializeLocked(ctx); err != nil {
		return err
	}
	c := Change{Kind: ChangeUnion, Row: row}
	r.log = append(r.log, c)
	r.current = applyChange(r.current, c)
	r.logger.V(4).Info("logged add", "row", row.String())
	return nil
}

// Delete appends a ChangeSelect entry removing every row matching pred.
func (r *Relation) Delete(ctx context.Context, pred *expr.Expression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.materializeLocked(ctx); err != nil {
		return err
	}
	c := Change{Kind: ChangeSelect, Pred: pred}
	r.log = append(r.log, c)
	r.current = applyChange(r.current, c)
	r.logger.V(4).Info("logged delete", "predicate", pred.String())
	return nil
}

// Update appends a ChangeUpdate entry overwriting newValues on every row
// matching pred.
func (r *Relation) Update(ctx context.Context, pred *expr.Expression, newValues value.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.materializeLocked(ctx); err != nil {
		return err
	}
	c := Change{Kind: ChangeUpdate, Pred: pred, NewValues: newValues}
	r.log = append(r.log, c)
	r.current = applyChange(r.current, c)
	r.logger.V(4).Info("logged update", "predicate", pred.String())
	return nil
}

// Materialize forces recomputation of the current result from the
// adapter's rows and the full log, and returns it.
func (r *Relation) Materialize(ctx context.Context) (relation.RowSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	return r.materializeLocked(ctx)
}

// TakeSnapshot returns an opaque copy of the log at this instant.
func (r *Relation) TakeSnapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make([]Change, len(r.log))
	copy(cp, r.log)
	return Snapshot{log: cp}
}

// RestoreSnapshot replaces the log with snap's and invalidates the
// materialized cache so the next read recomputes from the adapter's
// saved rows forward.
func (r *Relation) RestoreSnapshot(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Change, len(snap.log))
	copy(cp, snap.log)
	r.log = cp
	r.current = nil
}

// Save flushes every logged change to the underlying adapter, in order,
// and clears the log. A failure partway through leaves the log
// containing only the unflushed suffix, so a retried Save resumes rather
// than replays already-applied changes.
func (r *Relation) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.log) > 0 {
		c := r.log[0]
		if err := r.flushOne(ctx, c); err != nil {
			return err
		}
		r.log = r.log[1:]
	}
	r.current = nil
	return nil
}

func (r *Relation) flushOne(ctx context.Context, c Change) error {
	switch c.Kind {
	case ChangeUnion:
		_, err := r.adapter.Add(ctx, c.Row)
		return err
	case ChangeSelect:
		_, err := r.adapter.Delete(ctx, c.Pred)
		return err
	case ChangeUpdate:
		_, err := r.adapter.Update(ctx, c.Pred, c.NewValues)
		return err
	default:
		return nil
	}
}
