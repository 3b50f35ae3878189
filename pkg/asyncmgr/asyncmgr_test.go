package asyncmgr_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/asyncmgr"
	"github.com/l7mp/reldb/pkg/changelog"
	"github.com/l7mp/reldb/pkg/differentiate"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/observer"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

func TestAsyncmgr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "asyncmgr suite")
}

var (
	id   = value.NewAttribute("id")
	name = value.NewAttribute("name")
)

func person(i int64, n string) value.Row {
	return value.NewRow(map[value.Attribute]value.Value{id: value.Int64(i), name: value.Text(n)})
}

// syncRecorder blocks drain until its Changing call returns, so tests can
// assert ordering and deltas synchronously.
type syncRecorder struct {
	mu       sync.Mutex
	sequence []string
	deltas   []differentiate.Change
}

func (r *syncRecorder) WillChange(_ context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence = append(r.sequence, "will")
}

func (r *syncRecorder) Changing(_ context.Context, c differentiate.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence = append(r.sequence, "changing")
	r.deltas = append(r.deltas, c)
	return nil
}

func (r *syncRecorder) DidChange(_ context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence = append(r.sequence, "did")
}

func (r *syncRecorder) snapshot() ([]string, []differentiate.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sequence...), append([]differentiate.Change(nil), r.deltas...)
}

// reentrantRecorder issues a second mutation from inside Changing, to
// exercise the manager's re-entrancy handling.
type reentrantRecorder struct {
	mgr     *asyncmgr.Manager
	src     asyncmgr.MutableSource
	fired   bool
	changes int
}

func (r *reentrantRecorder) WillChange(_ context.Context) {}
func (r *reentrantRecorder) Changing(ctx context.Context, _ differentiate.Change) error {
	r.changes++
	if !r.fired {
		r.fired = true
		if err := r.mgr.Add(ctx, r.src, person(99, "zoe")); err != nil {
			return err
		}
	}
	return nil
}
func (r *reentrantRecorder) DidChange(_ context.Context) {}

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		adapter *storage.MemoryAdapter
		log     *changelog.Relation
		root    *relation.Relation
		reg     *observer.Registry
		mgr     *asyncmgr.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		scheme := value.NewScheme(id, name)
		adapter = storage.NewMemoryAdapter(scheme)
		log = changelog.New(adapter, logr.Discard())
		root = relation.Base(log)
		reg = observer.NewRegistry()

		var err error
		mgr, err = asyncmgr.New(ctx, root, reg, 4, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mgr.Stop()
	})

	It("drains an Add and notifies sync observers exactly once, in phase order", func() {
		rec := &syncRecorder{}
		reg.RegisterSyncDelta(rec)

		Expect(mgr.Add(ctx, log, person(1, "alice"))).To(Succeed())

		seq, deltas := rec.snapshot()
		Expect(seq).To(Equal([]string{"will", "changing", "did"}))
		Expect(deltas).To(HaveLen(1))
		Expect(deltas[0].Added.Size()).To(Equal(1))
		Expect(deltas[0].Added.Contains(person(1, "alice"))).To(BeTrue())
	})

	It("coalesces several actions issued before a drain into a single notification", func() {
		rec := &syncRecorder{}
		reg.RegisterSyncDelta(rec)

		var wg sync.WaitGroup
		for i := int64(1); i <= 3; i++ {
			wg.Add(1)
			go func(i int64) {
				defer wg.Done()
				Expect(mgr.Add(ctx, log, person(i, "p"))).To(Succeed())
			}(i)
		}
		wg.Wait()

		_, deltas := rec.snapshot()
		total := 0
		for _, d := range deltas {
			total += d.Added.Size()
		}
		Expect(total).To(Equal(3))
	})

	It("defers a mutation issued from inside an observer callback to a later drain", func() {
		rec := &reentrantRecorder{mgr: mgr, src: log}
		reg.RegisterSyncDelta(rec)

		Expect(mgr.Add(ctx, log, person(1, "alice"))).To(Succeed())

		Eventually(func() int {
			rows, err := log.Rows(ctx)
			Expect(err).NotTo(HaveOccurred())
			return rows.Size()
		}, time.Second).Should(Equal(2), "the reentrant add eventually lands in its own drain")
		Expect(rec.changes).To(BeNumerically(">=", 2), "the reentrant add triggers a second drain")
	})

	It("refuses new actions once stopped", func() {
		mgr.Stop()
		err := mgr.Add(ctx, log, person(2, "bob"))
		Expect(err).To(HaveOccurred())
	})

	It("suppresses notification entirely for a mutation a downstream select filters out", func() {
		selected := relation.Select(root, expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))))
		selMgr, err := asyncmgr.New(ctx, selected, reg, 4, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer selMgr.Stop()

		rec := &syncRecorder{}
		reg.RegisterSyncDelta(rec)

		Expect(selMgr.Add(ctx, log, person(3, "fish"))).To(Succeed())

		seq, _ := rec.snapshot()
		Expect(seq).To(BeEmpty(), "an unrelated row must never trigger will/changing/did")
	})
})
