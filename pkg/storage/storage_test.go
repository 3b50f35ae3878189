package storage_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/storage"
	"github.com/l7mp/reldb/pkg/value"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "storage suite")
}

var (
	id   = value.NewAttribute("id")
	name = value.NewAttribute("name")
)

func row(i int64, n string) value.Row {
	return value.NewRow(map[value.Attribute]value.Value{id: value.Int64(i), name: value.Text(n)})
}

var _ = Describe("MemoryAdapter", func() {
	scheme := value.NewScheme(id, name)

	It("treats adding a duplicate row as a no-op", func() {
		a := storage.NewMemoryAdapter(scheme)
		added, err := a.Add(context.Background(), row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(BeTrue())

		added, err = a.Add(context.Background(), row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())
		Expect(added).To(BeFalse())

		rows, err := a.Rows(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows.Size()).To(Equal(1))
	})

	It("deletes matching rows and reports the count", func() {
		a := storage.NewMemoryAdapter(scheme)
		_, _ = a.Add(context.Background(), row(1, "alice"))
		_, _ = a.Add(context.Background(), row(2, "bob"))

		pred := expr.Eq(expr.Attr(name), expr.Const(value.Text("alice")))
		n, err := a.Delete(context.Background(), pred)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		rows, _ := a.Rows(context.Background())
		Expect(rows.Size()).To(Equal(1))
		Expect(rows.Contains(row(2, "bob"))).To(BeTrue())
	})

	It("updates matching rows in place", func() {
		a := storage.NewMemoryAdapter(scheme)
		_, _ = a.Add(context.Background(), row(1, "alice"))

		pred := expr.Eq(expr.Attr(id), expr.Const(value.Int64(1)))
		n, err := a.Update(context.Background(), pred, value.NewRow(map[value.Attribute]value.Value{name: value.Text("alicia")}))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		rows, _ := a.Rows(context.Background())
		Expect(rows.Contains(row(1, "alicia"))).To(BeTrue())
	})

	It("rejects a row whose scheme does not match", func() {
		a := storage.NewMemoryAdapter(scheme)
		bad := value.NewRow(map[value.Attribute]value.Value{id: value.Int64(1)})
		_, err := a.Add(context.Background(), bad)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("RowPlistDirectoryAdapter", func() {
	scheme := value.NewScheme(id, name)
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "rowplist-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.RemoveAll(dir) })
	})

	It("round-trips rows through the filesystem", func() {
		a, err := storage.NewRowPlistDirectoryAdapter(dir, scheme, value.NewScheme(id))
		Expect(err).NotTo(HaveOccurred())

		_, err = a.Add(context.Background(), row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err = a.Add(context.Background(), row(2, "bob"))
		Expect(err).NotTo(HaveOccurred())

		rows, err := a.Rows(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows.Size()).To(Equal(2))
		Expect(rows.Contains(row(1, "alice"))).To(BeTrue())
		Expect(rows.Contains(row(2, "bob"))).To(BeTrue())
	})

	It("overwrites the same file when a non-key attribute is updated", func() {
		a, err := storage.NewRowPlistDirectoryAdapter(dir, scheme, value.NewScheme(id))
		Expect(err).NotTo(HaveOccurred())
		_, _ = a.Add(context.Background(), row(1, "alice"))

		pred := expr.Eq(expr.Attr(id), expr.Const(value.Int64(1)))
		n, err := a.Update(context.Background(), pred, value.NewRow(map[value.Attribute]value.Value{name: value.Text("alicia")}))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		rows, _ := a.Rows(context.Background())
		Expect(rows.Size()).To(Equal(1))
		Expect(rows.Contains(row(1, "alicia"))).To(BeTrue())
	})

	It("deletes the backing file", func() {
		a, err := storage.NewRowPlistDirectoryAdapter(dir, scheme, value.NewScheme(id))
		Expect(err).NotTo(HaveOccurred())
		_, _ = a.Add(context.Background(), row(1, "alice"))

		n, err := a.Delete(context.Background(), expr.Eq(expr.Attr(id), expr.Const(value.Int64(1))))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		rows, _ := a.Rows(context.Background())
		Expect(rows.Size()).To(Equal(0))
	})

	It("names a row's file after the bare canonical encoding of its key, not the row's", func() {
		a, err := storage.NewRowPlistDirectoryAdapter(dir, scheme, value.NewScheme(id))
		Expect(err).NotTo(HaveOccurred())
		_, err = a.Add(context.Background(), row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())

		digest := sha256.Sum256(value.Int64(1).CanonicalEncoding())
		wantName := hex.EncodeToString(digest[:])
		wantPath := filepath.Join(dir, wantName[:2], wantName+".rowplist")
		_, err = os.Stat(wantPath)
		Expect(err).NotTo(HaveOccurred(), "expected a rowplist file at %s", wantPath)
	})
})

var _ = Describe("SingleFilePlistAdapter", func() {
	scheme := value.NewScheme(id, name)
	var path string

	BeforeEach(func() {
		f, err := os.CreateTemp("", "reldb-*.plist")
		Expect(err).NotTo(HaveOccurred())
		path = f.Name()
		Expect(f.Close()).To(Succeed())
		Expect(os.Remove(path)).To(Succeed())
		DeferCleanup(func() { _ = os.Remove(path) })
	})

	It("round-trips a whole relation through one file", func() {
		a, err := storage.OpenSingleFilePlistAdapter(path, scheme)
		Expect(err).NotTo(HaveOccurred())

		_, err = a.Add(context.Background(), row(1, "alice"))
		Expect(err).NotTo(HaveOccurred())
		_, err = a.Add(context.Background(), row(2, "bob"))
		Expect(err).NotTo(HaveOccurred())

		reopened, err := storage.OpenSingleFilePlistAdapter(path, scheme)
		Expect(err).NotTo(HaveOccurred())
		rows, err := reopened.Rows(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(rows.Size()).To(Equal(2))
	})
})
