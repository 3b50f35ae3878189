package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

var _ = Describe("SQLiteAdapter", func() {
	It("round-trips rows through a WHERE-clause pushdown select", func() {
		ctx := context.Background()
		a, err := storage.OpenSQLiteAdapter(ctx, ":memory:", "people", value.NewScheme(id, name))
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		_, err = a.Add(ctx, row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err = a.Add(ctx, row(2, "bob"))
		Expect(err).NotTo(HaveOccurred())

		selected := relation.Select(relation.Base(a), expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))))
		res, err := selected.Eval(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Size()).To(Equal(1))
		Expect(res.Contains(row(1, "alice"))).To(BeTrue())
	})

	It("falls back to in-memory filtering for a shape translatePredicate does not support", func() {
		ctx := context.Background()
		a, err := storage.OpenSQLiteAdapter(ctx, ":memory:", "people2", value.NewScheme(id, name))
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		_, err = a.Add(ctx, row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err = a.Add(ctx, row(2, "bob"))
		Expect(err).NotTo(HaveOccurred())

		// OpOr has no translatePredicate case, forcing SelectNative's ok=false path.
		pred := expr.Or(
			expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))),
			expr.Eq(expr.Attr(id), expr.Const(value.Int64(2))),
		)
		selected := relation.Select(relation.Base(a), pred)
		res, err := selected.Eval(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Size()).To(Equal(2))
	})
})
