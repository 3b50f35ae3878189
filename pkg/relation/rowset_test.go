package relation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

var _ = Describe("RowSet singleton accessors", func() {
	It("reports None on an empty set", func() {
		s := relation.NewRowSet()
		Expect(s.IsEmpty()).To(BeTrue())
		_, ok := s.OneValue(name)
		Expect(ok).To(BeFalse())
	})

	It("reports Some(v) for a singleton, unaffected by re-adding an equal row", func() {
		s := relation.NewRowSet(row(1, "alice", "eng"))
		Expect(s.IsEmpty()).To(BeFalse())
		v, ok := s.OneValue(name)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(value.Text("alice")))

		s.Add(row(1, "alice", "eng"))
		v, ok = s.OneValue(name)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(value.Text("alice")))

		str, ok := s.OneString(name)
		Expect(ok).To(BeTrue())
		Expect(str).To(Equal("alice"))
	})

	It("reports None once a second row makes the set ambiguous", func() {
		s := relation.NewRowSet(row(1, "alice", "eng"), row(2, "bob", "sales"))
		_, ok := s.OneValue(name)
		Expect(ok).To(BeFalse())
	})
})
