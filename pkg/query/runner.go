package query

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/asyncmgr"
	"github.com/l7mp/reldb/pkg/observer"
	"github.com/l7mp/reldb/pkg/relation"
)

// Runner ties a compiled Plan to a running asyncmgr.Manager: it is the
// single handle application code holds for a query, covering both
// mutating its base sources and reading or subscribing to its result.
type Runner struct {
	plan     *Plan
	registry *observer.Registry
	mgr      *asyncmgr.Manager
	logger   logr.Logger
}

// Run compiles root and starts its Manager. The returned Runner owns the
// manager; callers must call Stop when done with the query.
func Run(ctx context.Context, root *relation.Relation, poolSize int, logger logr.Logger) (*Runner, error) {
	plan := Compile(root)
	registry := observer.NewRegistry()
	mgr, err := asyncmgr.New(ctx, root, registry, poolSize, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{plan: plan, registry: registry, mgr: mgr, logger: logger}, nil
}

// Plan returns the query's compiled shape.
func (r *Runner) Plan() *Plan { return r.plan }

// Observers returns the registry every observer of this query's changes
// registers against.
func (r *Runner) Observers() *observer.Registry { return r.registry }

// Manager returns the asynchronous update manager driving this query, for
// callers that need Add/Delete/Update/RestoreSnapshot against its base
// sources.
func (r *Runner) Manager() *asyncmgr.Manager { return r.mgr }

// Rows returns the query's current materialized result, computed inside a
// drain so it never races a concurrent mutation.
func (r *Runner) Rows(ctx context.Context) (relation.RowSet, error) {
	return r.mgr.Snapshot(ctx)
}

// Stop releases the query's manager and worker pool.
func (r *Runner) Stop() { r.mgr.Stop() }
