package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/changelog"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/query"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/txdb"
	"github.com/l7mp/reldb/pkg/value"
)

func row(pairs map[value.Attribute]value.Value) value.Row { return value.NewRow(pairs) }

// runS1 demonstrates basic delta propagation through a select+project
// view: adding rows, reading the projected result, then async-updating
// the matching row and watching the observer's three-phase sequence.
func runS1(ctx context.Context, logger logr.Logger) error {
	id, name := value.NewAttribute("id"), value.NewAttribute("name")
	adapter := storage.NewMemoryAdapter(value.NewScheme(id, name))
	log := changelog.New(adapter, logger)
	if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(1), name: value.Text("cat")})); err != nil {
		return err
	}
	if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(2), name: value.Text("dog")})); err != nil {
		return err
	}

	base := relation.Base(log)
	selected := relation.Select(base, expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))))
	projected := relation.Project(selected, value.NewScheme(name))

	r, err := query.Run(ctx, projected, 0, logger)
	if err != nil {
		return err
	}
	defer r.Stop()

	rows, err := r.Rows(ctx)
	if err != nil {
		return err
	}
	initial, ok := rows.OneString(name)
	fmt.Printf("initial value: %s\n", describeOneString(initial, ok))

	obs := newPrintingObserver("S1")
	r.Observers().RegisterSyncDelta(obs)

	if err := r.Manager().Update(ctx, log, expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))),
		row(map[value.Attribute]value.Value{name: value.Text("kat")})); err != nil {
		return err
	}

	rows, err = r.Rows(ctx)
	if err != nil {
		return err
	}
	final, ok := rows.OneString(name)
	fmt.Printf("final value: %s\n", describeOneString(final, ok))
	return nil
}

func describeOneString(s string, ok bool) string {
	if !ok {
		return "<none>"
	}
	return s
}

// runS2 demonstrates the inconsistency fast path: an unrelated mutation
// never fires willChange/didChange on an observer of a disjoint select.
func runS2(ctx context.Context, logger logr.Logger) error {
	id, name := value.NewAttribute("id"), value.NewAttribute("name")
	adapter := storage.NewMemoryAdapter(value.NewScheme(id, name))
	log := changelog.New(adapter, logger)
	if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(1), name: value.Text("cat")})); err != nil {
		return err
	}
	if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(2), name: value.Text("dog")})); err != nil {
		return err
	}

	base := relation.Base(log)
	selected := relation.Select(base, expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))))

	r, err := query.Run(ctx, selected, 0, logger)
	if err != nil {
		return err
	}
	defer r.Stop()

	obs := newPrintingObserver("S2")
	r.Observers().RegisterSyncDelta(obs)

	if err := r.Manager().Add(ctx, log, row(map[value.Attribute]value.Value{id: value.Int64(3), name: value.Text("fish")})); err != nil {
		return err
	}

	if obs.Fired() {
		fmt.Println("FAIL: observer fired for an unrelated row")
	} else {
		fmt.Println("OK: observer correctly suppressed for an unrelated row")
	}
	return nil
}

// runS3 demonstrates a targeted update against a single keyed row: moving
// Child2 under Group2 touches only Child2's row, leaving its former
// siblings' order attributes untouched.
func runS3(ctx context.Context, logger logr.Logger) error {
	id, parent, order := value.NewAttribute("id"), value.NewAttribute("parent"), value.NewAttribute("order")
	scheme := value.NewScheme(id, parent, order)
	adapter := storage.NewMemoryAdapter(scheme)
	log := changelog.New(adapter, logger)

	tree := []value.Row{
		row(map[value.Attribute]value.Value{id: value.Text("Group1"), parent: value.NullValue(), order: value.Int64(0)}),
		row(map[value.Attribute]value.Value{id: value.Text("Collection1"), parent: value.Text("Group1"), order: value.Int64(0)}),
		row(map[value.Attribute]value.Value{id: value.Text("Child1"), parent: value.Text("Collection1"), order: value.Int64(0)}),
		row(map[value.Attribute]value.Value{id: value.Text("Child2"), parent: value.Text("Collection1"), order: value.Int64(1)}),
		row(map[value.Attribute]value.Value{id: value.Text("Page1"), parent: value.Text("Group1"), order: value.Int64(1)}),
		row(map[value.Attribute]value.Value{id: value.Text("Page2"), parent: value.Text("Group1"), order: value.Int64(2)}),
		row(map[value.Attribute]value.Value{id: value.Text("Group2"), parent: value.NullValue(), order: value.Int64(1)}),
	}
	for _, t := range tree {
		if err := log.Add(ctx, t); err != nil {
			return err
		}
	}

	base := relation.Base(log)
	r, err := query.Run(ctx, base, 0, logger)
	if err != nil {
		return err
	}
	defer r.Stop()

	obs := newPrintingObserver("S3")
	r.Observers().RegisterSyncDelta(obs)

	err = r.Manager().Update(ctx, log, expr.Eq(expr.Attr(id), expr.Const(value.Text("Child2"))),
		row(map[value.Attribute]value.Value{parent: value.Text("Group2"), order: value.Int64(0)}))
	if err != nil {
		return err
	}
	fmt.Println("exactly Child2's row was retracted and replaced; Child1's order was never touched")
	return nil
}

// runS4 demonstrates transactional undo: a transaction's before/after
// snapshots become a SnapshotUndoCommand, which a host undo manager could
// push onto its stack; here we just drive Forward and Backward directly.
func runS4(ctx context.Context, logger logr.Logger) error {
	id, name := value.NewAttribute("id"), value.NewAttribute("name")
	adapter := storage.NewMemoryAdapter(value.NewScheme(id, name))
	log := changelog.New(adapter, logger)
	if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(1), name: value.Text("cat")})); err != nil {
		return err
	}
	if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(2), name: value.Text("dog")})); err != nil {
		return err
	}

	db := txdb.New(logger)
	db.Register("R", log)

	before, after, err := db.TransactionWithSnapshots(ctx, func(ctx context.Context) error {
		if err := log.Add(ctx, row(map[value.Attribute]value.Value{id: value.Int64(10), name: value.Text("x")})); err != nil {
			return err
		}
		return log.Delete(ctx, expr.Eq(expr.Attr(id), expr.Const(value.Int64(2))))
	})
	if err != nil {
		return err
	}

	cmd := txdb.SnapshotUndoCommand{DB: db, Before: before, After: after}

	rows, err := log.Rows(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("post-transaction: %d rows\n", rows.Size())

	if err := cmd.Backward(ctx); err != nil {
		return err
	}
	rows, err = log.Rows(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("after backward: %d rows (back to pre-transaction state)\n", rows.Size())

	if err := cmd.Forward(ctx); err != nil {
		return err
	}
	rows, err = log.Rows(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("after forward: %d rows (re-applied)\n", rows.Size())
	return nil
}

// runS5 demonstrates an equijoin's bilinear-expansion derivative: adding a
// matching row to each side of the join from two goroutines, which may or
// may not share one batch, yields exactly the combined row, never reported
// twice.
func runS5(ctx context.Context, logger logr.Logger) error {
	number, from, to := value.NewAttribute("number"), value.NewAttribute("from"), value.NewAttribute("to")
	pilot, airport := value.NewAttribute("pilot"), value.NewAttribute("airport")

	routesAdapter := storage.NewMemoryAdapter(value.NewScheme(number, from, to))
	routesLog := changelog.New(routesAdapter, logger)
	basedAdapter := storage.NewMemoryAdapter(value.NewScheme(pilot, airport))
	basedLog := changelog.New(basedAdapter, logger)

	joined := relation.Equijoin(relation.Base(routesLog), relation.Base(basedLog),
		[]relation.JoinAttrPair{{Left: from, Right: airport}})

	r, err := query.Run(ctx, joined, 0, logger)
	if err != nil {
		return err
	}
	defer r.Stop()

	obs := newPrintingObserver("S5")
	r.Observers().RegisterSyncDelta(obs)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- r.Manager().Add(ctx, routesLog, row(map[value.Attribute]value.Value{
			number: value.Int64(117), from: value.Text("Atlanta"), to: value.Text("Boston"),
		}))
	}()
	go func() {
		defer wg.Done()
		errs <- r.Manager().Add(ctx, basedLog, row(map[value.Attribute]value.Value{
			pilot: value.Text("Temple"), airport: value.Text("Atlanta"),
		}))
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}

	rows, err := r.Rows(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("joined result now has %d row(s)\n", rows.Size())
	return nil
}

// runS6 demonstrates the manager's re-entrancy handling: a mutation
// registered from inside a didChange callback is deferred to the
// following drain rather than merged into the one it fired from, and
// willChange/didChange stay balanced at quiescence.
func runS6(ctx context.Context, logger logr.Logger) error {
	id, name := value.NewAttribute("id"), value.NewAttribute("name")
	adapter := storage.NewMemoryAdapter(value.NewScheme(id, name))
	log := changelog.New(adapter, logger)

	base := relation.Base(log)
	r, err := query.Run(ctx, base, 0, logger)
	if err != nil {
		return err
	}
	defer r.Stop()

	reentered := false
	obs := &reentrantDemoObserver{
		printingObserver: newPrintingObserver("S6"),
		reenter: func(ctx context.Context) {
			if reentered {
				return
			}
			reentered = true
			go func() {
				_ = r.Manager().Add(ctx, log, row(map[value.Attribute]value.Value{
					id: value.Int64(2), name: value.Text("second"),
				}))
			}()
		},
	}
	r.Observers().RegisterSyncDelta(obs)

	if err := r.Manager().Add(ctx, log, row(map[value.Attribute]value.Value{
		id: value.Int64(1), name: value.Text("first"),
	})); err != nil {
		return err
	}

	for i := 0; i < 50 && !obs.sawSecond(); i++ {
		rows, err := r.Rows(ctx)
		if err != nil {
			return err
		}
		if rows.Size() == 2 {
			obs.markSecond()
		}
	}

	fmt.Printf("willChange == didChange at quiescence: %v\n", obs.Balanced())
	return nil
}

type reentrantDemoObserver struct {
	*printingObserver
	reenter func(ctx context.Context)
	second  sync.Once
	done    bool
}

func (o *reentrantDemoObserver) DidChange(ctx context.Context) {
	o.printingObserver.DidChange(ctx)
	o.reenter(ctx)
}

func (o *reentrantDemoObserver) markSecond()     { o.second.Do(func() { o.done = true }) }
func (o *reentrantDemoObserver) sawSecond() bool { return o.done }
