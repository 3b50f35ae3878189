package expr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/value"
)

func TestExpr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "expr suite")
}

var _ = Describe("Expression", func() {
	age := value.NewAttribute("age")
	name := value.NewAttribute("name")
	row := value.NewRow(map[value.Attribute]value.Value{
		age:  value.Int64(30),
		name: value.Text("alice"),
	})

	It("evaluates a comparison against a row", func() {
		e := expr.Gt(expr.Attr(age), expr.Const(value.Int64(18)))
		v, err := e.Evaluate(expr.EvalCtx{Object: row})
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Truthy()).To(BeTrue())
	})

	It("short-circuits and", func() {
		e := expr.And(expr.False(), expr.Attr("nonexistent"))
		v, err := e.Evaluate(expr.EvalCtx{Object: row})
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Truthy()).To(BeFalse())
	})

	It("short-circuits or", func() {
		e := expr.Or(expr.True(), expr.Attr("nonexistent"))
		v, err := e.Evaluate(expr.EvalCtx{Object: row})
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Truthy()).To(BeTrue())
	})

	It("errors on an unbound attribute reference", func() {
		e := expr.Eq(expr.Attr("missing"), expr.Const(value.Int64(1)))
		_, err := e.Evaluate(expr.EvalCtx{Object: row})
		Expect(err).To(HaveOccurred())
	})

	It("resolves an attribute against the subject when absent from the object", func() {
		subj := value.NewRow(map[value.Attribute]value.Value{age: value.Int64(30)})
		e := expr.Eq(expr.Attr(age), expr.Const(value.Int64(30)))
		obj := value.NewRow(map[value.Attribute]value.Value{name: value.Text("alice")})
		v, err := e.Evaluate(expr.EvalCtx{Object: obj, Subject: subj})
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Truthy()).To(BeTrue())
	})

	It("recognizes an equality-against-constant shape", func() {
		e := expr.Eq(expr.Attr(name), expr.Const(value.Text("alice")))
		attr, c, ok := e.AsEqualityConstant()
		Expect(ok).To(BeTrue())
		Expect(attr).To(Equal(name))
		Expect(c.Equal(value.Text("alice"))).To(BeTrue())
	})

	It("does not recognize a non-equality comparison as an equality-constant shape", func() {
		e := expr.Lt(expr.Attr(age), expr.Const(value.Int64(1)))
		_, _, ok := e.AsEqualityConstant()
		Expect(ok).To(BeFalse())
	})

	It("collects referenced attributes", func() {
		e := expr.And(expr.Eq(expr.Attr(age), expr.Const(value.Int64(1))), expr.Attr(name))
		attrs := e.Attributes()
		Expect(attrs).To(ContainElements(age, name))
	})
})
