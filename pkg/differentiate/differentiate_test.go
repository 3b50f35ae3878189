package differentiate_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/differentiate"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

func TestDifferentiate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "differentiate suite")
}

var (
	id   = value.NewAttribute("id")
	dept = value.NewAttribute("dept")
	name = value.NewAttribute("name")
)

func employee(i int64, d, n string) value.Row {
	return value.NewRow(map[value.Attribute]value.Value{
		id: value.Int64(i), dept: value.Text(d), name: value.Text(n),
	})
}

var _ = Describe("Derivative", func() {
	var (
		ctx     context.Context
		adapter *storage.MemoryAdapter
		scheme  value.Scheme
	)

	BeforeEach(func() {
		ctx = context.Background()
		scheme = value.NewScheme(id, dept, name)
		adapter = storage.NewMemoryAdapter(scheme)
		_, err := adapter.Add(ctx, employee(1, "eng", "alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err = adapter.Add(ctx, employee(2, "eng", "bob"))
		Expect(err).NotTo(HaveOccurred())
		_, err = adapter.Add(ctx, employee(3, "sales", "carol"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("propagates a linear select-then-project chain incrementally", func() {
		base := relation.Base(adapter)
		selected := relation.Select(base, expr.Eq(expr.Attr(dept), expr.Const(value.Text("eng"))))
		projected := relation.Project(selected, value.NewScheme(id, name))

		d, err := differentiate.Build(ctx, projected, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		_, err = adapter.Add(ctx, employee(4, "eng", "dave"))
		Expect(err).NotTo(HaveOccurred())
		change, err := d.Apply(ctx, map[relation.Source]differentiate.Change{
			adapter: {Added: relation.NewRowSet(employee(4, "eng", "dave"))},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.Added.Size()).To(Equal(1))
		Expect(change.Removed.Size()).To(Equal(0))
		Expect(change.Added.Contains(employee(4, "eng", "dave").Project(value.NewScheme(id, name)))).To(BeTrue())

		_, err = adapter.Add(ctx, employee(5, "sales", "erin"))
		Expect(err).NotTo(HaveOccurred())
		change, err = d.Apply(ctx, map[relation.Source]differentiate.Change{
			adapter: {Added: relation.NewRowSet(employee(5, "sales", "erin"))},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.IsZero()).To(BeTrue(), "a sales hire never reaches the root through the eng select")
	})

	It("computes an equijoin's derivative via the bilinear expansion", func() {
		deptNameAttr := value.NewAttribute("deptname")
		deptAdapter := storage.NewMemoryAdapter(value.NewScheme(dept, deptNameAttr))
		_, err := deptAdapter.Add(ctx, value.NewRow(map[value.Attribute]value.Value{
			dept: value.Text("eng"), deptNameAttr: value.Text("Engineering"),
		}))
		Expect(err).NotTo(HaveOccurred())

		left := relation.Base(adapter)
		right := relation.Base(deptAdapter)
		joined := relation.Equijoin(left, right, []relation.JoinAttrPair{{Left: dept, Right: dept}})

		d, err := differentiate.Build(ctx, joined, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		before, err := joined.Eval(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(before.Size()).To(Equal(2)) // alice, bob

		salesRow := value.NewRow(map[value.Attribute]value.Value{
			dept: value.Text("sales"), deptNameAttr: value.Text("Sales"),
		})
		_, err = deptAdapter.Add(ctx, salesRow)
		Expect(err).NotTo(HaveOccurred())

		change, err := d.Apply(ctx, map[relation.Source]differentiate.Change{
			deptAdapter: {Added: relation.NewRowSet(salesRow)},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.Added.Size()).To(Equal(1), "carol now joins against the new sales row")
	})

	It("recomputes only the affected group of an aggregate", func() {
		base := relation.Base(adapter)
		headcount := value.NewAttribute("headcount")
		agg := relation.Aggregate(base, value.NewScheme(dept), relation.AggCount, id, headcount)

		d, err := differentiate.Build(ctx, agg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		_, err = adapter.Add(ctx, employee(4, "eng", "dave"))
		Expect(err).NotTo(HaveOccurred())
		change, err := d.Apply(ctx, map[relation.Source]differentiate.Change{
			adapter: {Added: relation.NewRowSet(employee(4, "eng", "dave"))},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.Removed.Size()).To(Equal(1), "the old eng headcount row is retracted")
		Expect(change.Added.Size()).To(Equal(1), "and replaced by the updated count")

		for _, row := range change.Added {
			Expect(row.Get(dept)).To(Equal(value.Text("eng")))
			Expect(row.Get(headcount)).To(Equal(value.Int64(3)))
		}
	})

	It("keeps the ungrouped aggregate's single row as its last member is removed incrementally", func() {
		empty := storage.NewMemoryAdapter(value.NewScheme(id, dept, name))
		_, err := empty.Add(ctx, employee(9, "eng", "zed"))
		Expect(err).NotTo(HaveOccurred())

		base := relation.Base(empty)
		count := value.NewAttribute("n")
		agg := relation.Aggregate(base, value.NewScheme(), relation.AggCount, id, count)

		d, err := differentiate.Build(ctx, agg, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		_, err = empty.Delete(ctx, expr.Eq(expr.Attr(id), expr.Const(value.Int64(9))))
		Expect(err).NotTo(HaveOccurred())
		change, err := d.Apply(ctx, map[relation.Source]differentiate.Change{
			empty: {Removed: relation.NewRowSet(employee(9, "eng", "zed"))},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.Added.Size()).To(Equal(1), "the count row is retracted and replaced with zero, never dropped")
		for _, row := range change.Added {
			Expect(row.Get(count)).To(Equal(value.Int64(0)))
		}
	})

	It("recomputes unique's gate only at the transition boundary", func() {
		base := relation.Base(adapter)
		u := relation.Unique(base, dept, value.Text("eng"))

		_, err := adapter.Delete(ctx, expr.Eq(expr.Attr(id), expr.Const(value.Int64(3))))
		Expect(err).NotTo(HaveOccurred())

		d, err := differentiate.Build(ctx, u, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		before, err := u.Eval(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(before.Size()).To(Equal(2), "every remaining row already agrees on eng")

		_, err = adapter.Add(ctx, employee(5, "sales", "erin"))
		Expect(err).NotTo(HaveOccurred())
		change, err := d.Apply(ctx, map[relation.Source]differentiate.Change{
			adapter: {Added: relation.NewRowSet(employee(5, "sales", "erin"))},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.Removed.Size()).To(Equal(2), "the gate slams shut: every previously-visible row is retracted")
		Expect(change.Added.Size()).To(Equal(0))

		_, err = adapter.Delete(ctx, expr.Eq(expr.Attr(id), expr.Const(value.Int64(5))))
		Expect(err).NotTo(HaveOccurred())
		change, err = d.Apply(ctx, map[relation.Source]differentiate.Change{
			adapter: {Removed: relation.NewRowSet(employee(5, "sales", "erin"))},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(change.Added.Size()).To(Equal(2), "the gate reopens once the offending row is gone")
	})
})
