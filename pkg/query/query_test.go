package query_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/internal/testutils"
	"github.com/l7mp/reldb/pkg/changelog"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/query"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

func TestQuery(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "query suite")
}

var (
	id   = value.NewAttribute("id")
	dept = value.NewAttribute("dept")
)

func row(i int64, d string) value.Row {
	return value.NewRow(map[value.Attribute]value.Value{id: value.Int64(i), dept: value.Text(d)})
}

var _ = Describe("Compile", func() {
	It("collects a chain's base sources and topological node order", func() {
		adapter := storage.NewMemoryAdapter(value.NewScheme(id, dept))
		base := relation.Base(adapter)
		selected := relation.Select(base, expr.Eq(expr.Attr(dept), expr.Const(value.Text("eng"))))
		projected := relation.Project(selected, value.NewScheme(id))

		plan := query.Compile(projected)
		Expect(plan.Sources).To(ConsistOf(relation.Source(adapter)))
		Expect(plan.Nodes).To(HaveLen(3))
		Expect(plan.Nodes[len(plan.Nodes)-1]).To(Equal(projected))
		Expect(plan.Depth()).To(Equal(2))
	})

	It("counts a shared subexpression once", func() {
		adapter := storage.NewMemoryAdapter(value.NewScheme(id, dept))
		base := relation.Base(adapter)
		u := relation.Union(base, base)

		plan := query.Compile(u)
		Expect(plan.Sources).To(HaveLen(1))
		Expect(plan.Nodes).To(HaveLen(2)) // base, union
	})
})

var _ = Describe("Runner", func() {
	It("runs a query end to end: mutate, drain, read back", func() {
		ctx := context.Background()
		adapter := storage.NewMemoryAdapter(value.NewScheme(id, dept))
		_, err := adapter.Add(ctx, row(1, "eng"))
		Expect(err).NotTo(HaveOccurred())

		base := relation.Base(adapter)
		selected := relation.Select(base, expr.Eq(expr.Attr(dept), expr.Const(value.Text("eng"))))

		r, err := query.Run(ctx, selected, 2, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer r.Stop()

		rows, err := r.Rows(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows.Size()).To(Equal(1))
	})

	It("drives willChange/changing/didChange exactly once per mutation", func() {
		ctx := context.Background()
		adapter := storage.NewMemoryAdapter(value.NewScheme(id, dept))
		log := changelog.New(adapter, logr.Discard())

		base := relation.Base(log)
		r, err := query.Run(ctx, base, 0, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		defer r.Stop()

		rec := testutils.NewPhaseRecorder()
		r.Observers().RegisterSyncDelta(rec)

		Expect(r.Manager().Add(ctx, log, row(1, "eng"))).To(Succeed())

		Expect(rec.Phases()).To(Equal([]string{"will", "changing", "did"}))
		Expect(rec.Deltas()).To(HaveLen(1))
		Expect(rec.Deltas()[0].Added.Size()).To(Equal(1))
	})
})
