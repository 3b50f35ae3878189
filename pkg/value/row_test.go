package value_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/value"
)

func TestValue(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "value suite")
}

var _ = Describe("Row", func() {
	name := value.NewAttribute("name")
	age := value.NewAttribute("age")

	It("returns notFound for a missing attribute", func() {
		r := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice")})
		Expect(r.Get(age).IsNotFound()).To(BeTrue())
		Expect(r.Get(name).Equal(value.Text("alice"))).To(BeTrue())
	})

	It("considers two rows with identical mappings equal", func() {
		r1 := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice"), age: value.Int64(30)})
		r2 := value.NewRow(map[value.Attribute]value.Value{age: value.Int64(30), name: value.Text("alice")})
		Expect(r1.Equal(r2)).To(BeTrue())
	})

	It("considers rows with a differing value unequal", func() {
		r1 := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice")})
		r2 := value.NewRow(map[value.Attribute]value.Value{name: value.Text("bob")})
		Expect(r1.Equal(r2)).To(BeFalse())
	})

	It("reports scheme satisfaction exactly", func() {
		r := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice"), age: value.Int64(30)})
		Expect(r.Satisfies(value.NewScheme(name, age))).To(BeTrue())
		Expect(r.Satisfies(value.NewScheme(name))).To(BeFalse())
	})

	It("projects onto a subset scheme", func() {
		r := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice"), age: value.Int64(30)})
		p := r.Project(value.NewScheme(name))
		Expect(p.Satisfies(value.NewScheme(name))).To(BeTrue())
		Expect(p.Get(age).IsNotFound()).To(BeTrue())
	})

	It("renames attributes without disturbing unmapped ones", func() {
		r := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice"), age: value.Int64(30)})
		fullName := value.NewAttribute("fullName")
		renamed := r.Rename(map[value.Attribute]value.Attribute{name: fullName})
		Expect(renamed.Get(fullName).Equal(value.Text("alice"))).To(BeTrue())
		Expect(renamed.Get(age).Equal(value.Int64(30))).To(BeTrue())
		Expect(renamed.Get(name).IsNotFound()).To(BeTrue())
	})

	It("applies WithUpdates as an overwrite merge", func() {
		r := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice"), age: value.Int64(30)})
		updated := r.WithUpdates(value.NewRow(map[value.Attribute]value.Value{age: value.Int64(31)}))
		Expect(updated.Get(age).Equal(value.Int64(31))).To(BeTrue())
		Expect(updated.Get(name).Equal(value.Text("alice"))).To(BeTrue())
		Expect(r.Get(age).Equal(value.Int64(30))).To(BeTrue(), "original row must not be mutated")
	})

	It("leaves non-overlapping keys untouched under non-overwrite merge", func() {
		r1 := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice")})
		r2 := value.NewRow(map[value.Attribute]value.Value{name: value.Text("bob"), age: value.Int64(30)})
		m := r1.Merge(r2, false)
		Expect(m.Get(name).Equal(value.Text("alice"))).To(BeTrue())
		Expect(m.Get(age).Equal(value.Int64(30))).To(BeTrue())
	})
})

var _ = Describe("Scheme", func() {
	a := value.NewAttribute("a")
	b := value.NewAttribute("b")
	c := value.NewAttribute("c")

	It("computes union and intersection", func() {
		s1 := value.NewScheme(a, b)
		s2 := value.NewScheme(b, c)
		Expect(s1.Union(s2).Equal(value.NewScheme(a, b, c))).To(BeTrue())
		Expect(s1.Intersect(s2).Equal(value.NewScheme(b))).To(BeTrue())
	})

	It("reports subset relationships", func() {
		Expect(value.NewScheme(a).SubsetOf(value.NewScheme(a, b))).To(BeTrue())
		Expect(value.NewScheme(a, c).SubsetOf(value.NewScheme(a, b))).To(BeFalse())
	})
})

var _ = Describe("Value", func() {
	It("orders kinds null < integer < real < text < blob", func() {
		Expect(value.Compare(value.NullValue(), value.Int64(0))).To(BeNumerically("<", 0))
		Expect(value.Compare(value.Int64(0), value.Real64(0))).To(BeNumerically("<", 0))
		Expect(value.Compare(value.Real64(0), value.Text(""))).To(BeNumerically("<", 0))
		Expect(value.Compare(value.Text(""), value.Blob(nil))).To(BeNumerically("<", 0))
	})

	It("treats only nonzero integers as truthy", func() {
		Expect(value.Int64(1).Truthy()).To(BeTrue())
		Expect(value.Int64(0).Truthy()).To(BeFalse())
		Expect(value.Real64(1).Truthy()).To(BeFalse())
	})
})
