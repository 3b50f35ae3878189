// Package txdb implements the transactional database: a named collection
// of change-logging relations with nestable begin/end transactions and
// coordinated, atomic-within-process snapshot/restore across every
// member relation. Grounded on the teacher's pkg/cache.CompositeCache,
// which composes several per-kind caches under one object with a shared
// lifecycle; retargeted here from Kubernetes object caches to
// changelog.Relation.
package txdb

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/changelog"
)

// Snapshot is an opaque, atomic point-in-time capture of every member
// relation's change log, keyed by the relation's registered name.
type Snapshot struct {
	logs map[string]changelog.Snapshot
}

// Database is a named collection of change-logging relations, mutated
// under nestable transactions.
type Database struct {
	mu        sync.Mutex
	relations map[string]*changelog.Relation
	depth     int
	logger    logr.Logger
}

// New creates an empty transactional database.
func New(logger logr.Logger) *Database {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Database{
		relations: make(map[string]*changelog.Relation),
		logger:    logger.WithName("txdb"),
	}
}

// Register adds r to the database under name, replacing whatever was
// previously registered under that name.
func (d *Database) Register(name string, r *changelog.Relation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.relations[name] = r
}

// Relation returns the relation registered under name.
func (d *Database) Relation(name string) (*changelog.Relation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.relations[name]
	return r, ok
}

// Begin opens a transaction. Transactions nest: only the outermost End
// actually commits.
func (d *Database) Begin() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth++
	d.logger.V(8).Info("begin", "depth", d.depth)
}

// End closes one level of transaction nesting. When the outermost
// transaction closes, every member relation's log is flushed to its
// adapter via Save.
func (d *Database) End(ctx context.Context) error {
	d.mu.Lock()
	if d.depth == 0 {
		d.mu.Unlock()
		return NewNoTransactionError()
	}
	d.depth--
	depth := d.depth
	relations := d.snapshotRelationsLocked()
	d.mu.Unlock()

	d.logger.V(8).Info("end", "depth", depth)
	if depth > 0 {
		return nil
	}
	for name, r := range relations {
		if err := r.Save(ctx); err != nil {
			return NewCommitError(name, err)
		}
	}
	return nil
}

func (d *Database) snapshotRelationsLocked() map[string]*changelog.Relation {
	out := make(map[string]*changelog.Relation, len(d.relations))
	for k, v := range d.relations {
		out[k] = v
	}
	return out
}

// Transaction runs f inside a begin/end pair, rolling every member
// relation back to its pre-transaction state if f (or the commit itself)
// returns an error.
func (d *Database) Transaction(ctx context.Context, f func(ctx context.Context) error) error {
	before := d.TakeSnapshot()
	d.Begin()

	if err := f(ctx); err != nil {
		d.RestoreSnapshot(before)
		d.rollbackDepth()
		return err
	}
	if err := d.End(ctx); err != nil {
		d.RestoreSnapshot(before)
		return err
	}
	return nil
}

// rollbackDepth undoes the Begin of an aborted Transaction without
// triggering the commit path End would otherwise take.
func (d *Database) rollbackDepth() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.depth > 0 {
		d.depth--
	}
}

// TransactionWithSnapshots behaves like Transaction but also returns the
// database snapshots taken immediately before and after f ran (but
// before the commit's Save), for a caller building an undo command per
// spec's undo-manager contract (see undo.go).
func (d *Database) TransactionWithSnapshots(ctx context.Context, f func(ctx context.Context) error) (before, after Snapshot, err error) {
	before = d.TakeSnapshot()
	d.Begin()

	if err = f(ctx); err != nil {
		d.RestoreSnapshot(before)
		d.rollbackDepth()
		return before, Snapshot{}, err
	}
	after = d.TakeSnapshot()
	if err = d.End(ctx); err != nil {
		d.RestoreSnapshot(before)
		return before, Snapshot{}, err
	}
	return before, after, nil
}

// TakeSnapshot atomically captures every member relation's log.
func (d *Database) TakeSnapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	logs := make(map[string]changelog.Snapshot, len(d.relations))
	for name, r := range d.relations {
		logs[name] = r.TakeSnapshot()
	}
	return Snapshot{logs: logs}
}

// RestoreSnapshot atomically restores every member relation registered
// at the time snap was taken. A relation registered after snap was taken
// is left untouched; a relation present in snap but since unregistered
// is ignored.
func (d *Database) RestoreSnapshot(snap Snapshot) {
	d.mu.Lock()
	relations := d.snapshotRelationsLocked()
	d.mu.Unlock()

	for name, log := range snap.logs {
		if r, ok := relations[name]; ok {
			r.RestoreSnapshot(log)
		}
	}
}
