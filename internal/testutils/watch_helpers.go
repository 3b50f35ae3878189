// Package testutils collects small helpers shared by the engine's test
// suites.
package testutils

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/differentiate"
	"github.com/l7mp/reldb/pkg/relation"
)

// PhaseRecorder is an observer.DeltaObserver test double that records the
// three-phase willChange/changing/didChange sequence a drain drives it
// through, for tests asserting phase ordering and exactly-once delivery.
//
// Grounded on the teacher's TryWatch/TryWatchReq: a timeout-bounded
// receive over a channel that a background reconciliation loop writes to,
// generalized here from a single reconciler.Request channel to the three
// distinct lifecycle events an asynchronous drain emits.
type PhaseRecorder struct {
	mu     sync.Mutex
	phases []string
	deltas []differentiate.Change
	willCh chan struct{}
	didCh  chan struct{}
}

// NewPhaseRecorder creates an empty PhaseRecorder.
func NewPhaseRecorder() *PhaseRecorder {
	return &PhaseRecorder{
		willCh: make(chan struct{}, 16),
		didCh:  make(chan struct{}, 16),
	}
}

func (p *PhaseRecorder) WillChange(_ context.Context) {
	p.mu.Lock()
	p.phases = append(p.phases, "will")
	p.mu.Unlock()
	p.willCh <- struct{}{}
}

func (p *PhaseRecorder) Changing(_ context.Context, c differentiate.Change) error {
	p.mu.Lock()
	p.phases = append(p.phases, "changing")
	p.deltas = append(p.deltas, c)
	p.mu.Unlock()
	return nil
}

func (p *PhaseRecorder) DidChange(_ context.Context) {
	p.mu.Lock()
	p.phases = append(p.phases, "did")
	p.mu.Unlock()
	p.didCh <- struct{}{}
}

// Phases returns a snapshot of the recorded willChange/changing/didChange
// sequence so far.
func (p *PhaseRecorder) Phases() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.phases...)
}

// Deltas returns a snapshot of every delta this recorder has seen.
func (p *PhaseRecorder) Deltas() []differentiate.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]differentiate.Change(nil), p.deltas...)
}

// WaitDidChange blocks until a DidChange notification arrives or timeout
// elapses, returning false on timeout. Useful in tests that enqueue an
// asynchronous mutation and need to know a drain has fully notified this
// recorder before asserting on its recorded state.
func (p *PhaseRecorder) WaitDidChange(timeout time.Duration) bool {
	select {
	case <-p.didCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ExpectRows is a small assertion helper: it fails the current test unless
// rows has exactly the expected size, echoing the teacher's habit of
// keeping common multi-line Gomega assertions out of the test body.
func ExpectRows(rows relation.RowSet, size int) {
	Expect(rows.Size()).To(Equal(size))
}
