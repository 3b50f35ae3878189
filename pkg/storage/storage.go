// Package storage implements the persistent row-store contract that a
// stored Relation is built over, plus four concrete adapters: an
// in-memory baseline, a SQLite-backed adapter, and two XML-plist
// adapters (row-per-file and single-file). Grounded on the teacher's
// pkg/cache.Store contract, generalized from Kubernetes objects to the
// engine's Row/Scheme/Value model.
package storage

import (
	"context"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// Adapter is the storage contract every persistent row store satisfies.
// It embeds relation.Source so that relation.Base can wrap an Adapter
// directly. add/delete/update are adapter-level mutations: the
// change-logging relation (pkg/changelog) calls through to these and
// records the resulting change in its log.
type Adapter interface {
	relation.Source

	// Add inserts row. If an identical row already exists, Add is a
	// no-op and reports added=false.
	Add(ctx context.Context, row value.Row) (added bool, err error)

	// Delete removes every row matching pred, reporting how many were
	// removed.
	Delete(ctx context.Context, pred *expr.Expression) (removed int, err error)

	// Update overwrites the attributes in newValues on every row
	// matching pred, reporting how many rows were touched.
	Update(ctx context.Context, pred *expr.Expression, newValues value.Row) (updated int, err error)
}

// NativeSelector is optionally implemented by an Adapter that can
// evaluate a predicate without first materializing every row — e.g. by
// translating it into a SQL WHERE clause. select() checks for this
// interface before falling back to in-memory filtering.
type NativeSelector interface {
	// SelectNative attempts to push pred down to the adapter. ok is
	// false when pred's shape is not supported for pushdown, in which
	// case the caller must filter in-memory instead.
	SelectNative(ctx context.Context, pred *expr.Expression) (rows relation.RowSet, ok bool, err error)
}

// matchingRows filters in from pred, used by adapters whose Delete/Update
// is not backed by a query engine that can filter natively.
func matchingRows(rows relation.RowSet, pred *expr.Expression) (relation.RowSet, error) {
	out := make(relation.RowSet)
	for _, row := range rows {
		ok, err := pred.Test(expr.EvalCtx{Object: row})
		if err != nil {
			return nil, err
		}
		if ok {
			out.Add(row)
		}
	}
	return out, nil
}
