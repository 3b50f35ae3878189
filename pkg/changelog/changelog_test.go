package changelog_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/pkg/changelog"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

func TestChangelog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "changelog suite")
}

var (
	id   = value.NewAttribute("id")
	name = value.NewAttribute("name")
)

func row(i int64, n string) value.Row {
	return value.NewRow(map[value.Attribute]value.Value{id: value.Int64(i), name: value.Text(n)})
}

var _ = Describe("Relation", func() {
	scheme := value.NewScheme(id, name)

	It("reflects a logged add before Save", func() {
		adapter := storage.NewMemoryAdapter(scheme)
		r := changelog.New(adapter, logr.Discard())

		Expect(r.Add(context.Background(), row(1, "alice"))).To(Succeed())

		rows, err := r.Rows(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows.Size()).To(Equal(1))

		underlying, _ := adapter.Rows(context.Background())
		Expect(underlying.Size()).To(Equal(0), "Save has not been called yet")
	})

	It("flushes the log to the adapter on Save", func() {
		adapter := storage.NewMemoryAdapter(scheme)
		r := changelog.New(adapter, logr.Discard())
		Expect(r.Add(context.Background(), row(1, "alice"))).To(Succeed())
		Expect(r.Save(context.Background())).To(Succeed())

		underlying, err := adapter.Rows(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(underlying.Size()).To(Equal(1))
	})

	It("restores a prior snapshot, undoing later changes", func() {
		adapter := storage.NewMemoryAdapter(scheme)
		r := changelog.New(adapter, logr.Discard())
		Expect(r.Add(context.Background(), row(1, "alice"))).To(Succeed())

		snap := r.TakeSnapshot()

		Expect(r.Add(context.Background(), row(2, "bob"))).To(Succeed())
		rows, _ := r.Rows(context.Background())
		Expect(rows.Size()).To(Equal(2))

		r.RestoreSnapshot(snap)
		rows, _ = r.Rows(context.Background())
		Expect(rows.Size()).To(Equal(1))
		Expect(rows.Contains(row(1, "alice"))).To(BeTrue())
	})

	It("applies a logged delete against already-logged adds", func() {
		adapter := storage.NewMemoryAdapter(scheme)
		r := changelog.New(adapter, logr.Discard())
		Expect(r.Add(context.Background(), row(1, "alice"))).To(Succeed())
		Expect(r.Add(context.Background(), row(2, "bob"))).To(Succeed())

		pred := expr.Eq(expr.Attr(name), expr.Const(value.Text("alice")))
		Expect(r.Delete(context.Background(), pred)).To(Succeed())

		rows, _ := r.Rows(context.Background())
		Expect(rows.Size()).To(Equal(1))
		Expect(rows.Contains(row(2, "bob"))).To(BeTrue())
	})
})
