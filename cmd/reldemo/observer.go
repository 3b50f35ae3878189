package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/l7mp/reldb/pkg/differentiate"
)

// printingObserver is a observer.DeltaObserver that prints the three-phase
// protocol events to stdout as they arrive, and counts willChange/
// didChange calls so scenarios can assert invariant 1 (every willChange is
// eventually matched by a didChange) at quiescence.
type printingObserver struct {
	name      string
	willCount atomic.Int64
	didCount  atomic.Int64
	lastFired atomic.Bool
}

func newPrintingObserver(name string) *printingObserver {
	return &printingObserver{name: name}
}

func (o *printingObserver) WillChange(_ context.Context) {
	o.willCount.Add(1)
	o.lastFired.Store(true)
	fmt.Printf("  [%s] willChange\n", o.name)
}

func (o *printingObserver) Changing(_ context.Context, c differentiate.Change) error {
	fmt.Printf("  [%s] changing: +%d -%d\n", o.name, c.Added.Size(), c.Removed.Size())
	for _, r := range c.Removed {
		fmt.Printf("  [%s]   - %s\n", o.name, r)
	}
	for _, r := range c.Added {
		fmt.Printf("  [%s]   + %s\n", o.name, r)
	}
	return nil
}

func (o *printingObserver) DidChange(_ context.Context) {
	o.didCount.Add(1)
	fmt.Printf("  [%s] didChange\n", o.name)
}

// Fired reports whether this observer's WillChange fired since the last
// call to ResetFired, used to demonstrate the inconsistency fast path
// (an unrelated mutation must never fire an unaffected observer).
func (o *printingObserver) Fired() bool    { return o.lastFired.Load() }
func (o *printingObserver) ResetFired()    { o.lastFired.Store(false) }
func (o *printingObserver) Balanced() bool { return o.willCount.Load() == o.didCount.Load() }
