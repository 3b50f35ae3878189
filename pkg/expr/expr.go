// Package expr implements select-expressions: the small predicate
// language used by the select and join combinators to filter and match
// rows. An Expression is a tree of constants, attribute references, and
// boolean/comparison operators; Evaluate walks the tree against a single
// row (or a pair of rows, for a join condition) and produces a Value.
package expr

import (
	"fmt"

	"github.com/l7mp/reldb/pkg/value"
)

// Op identifies an expression node kind.
type Op int

const (
	OpConst Op = iota
	OpAttr
	OpEq
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpAnd
	OpOr
	OpNot
	OpTrue
	OpFalse
)

func (o Op) String() string {
	switch o {
	case OpConst:
		return "const"
	case OpAttr:
		return "attr"
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLeq:
		return "<="
	case OpGt:
		return ">"
	case OpGeq:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	case OpTrue:
		return "true"
	case OpFalse:
		return "false"
	default:
		return "<unknown op>"
	}
}

// Expression is a node in a select-expression tree. Depending on Op,
// either Const/Attr is populated (leaves) or Args holds the operator's
// children (internal nodes).
type Expression struct {
	Op    Op
	Const value.Value
	Attr  value.Attribute
	Args  []*Expression
}

// Const builds a constant-valued leaf.
func Const(v value.Value) *Expression { return &Expression{Op: OpConst, Const: v} }

// Attr builds an attribute-reference leaf.
func Attr(a value.Attribute) *Expression { return &Expression{Op: OpAttr, Attr: a} }

// True and False are the two boolean literals.
func True() *Expression  { return &Expression{Op: OpTrue} }
func False() *Expression { return &Expression{Op: OpFalse} }

func binary(op Op, lhs, rhs *Expression) *Expression {
	return &Expression{Op: op, Args: []*Expression{lhs, rhs}}
}

// Eq, Neq, Lt, Leq, Gt, Geq build comparison nodes.
func Eq(lhs, rhs *Expression) *Expression  { return binary(OpEq, lhs, rhs) }
func Neq(lhs, rhs *Expression) *Expression { return binary(OpNeq, lhs, rhs) }
func Lt(lhs, rhs *Expression) *Expression  { return binary(OpLt, lhs, rhs) }
func Leq(lhs, rhs *Expression) *Expression { return binary(OpLeq, lhs, rhs) }
func Gt(lhs, rhs *Expression) *Expression  { return binary(OpGt, lhs, rhs) }
func Geq(lhs, rhs *Expression) *Expression { return binary(OpGeq, lhs, rhs) }

// And, Or combine two boolean sub-expressions; Not negates one.
func And(lhs, rhs *Expression) *Expression { return binary(OpAnd, lhs, rhs) }
func Or(lhs, rhs *Expression) *Expression  { return binary(OpOr, lhs, rhs) }
func Not(arg *Expression) *Expression      { return &Expression{Op: OpNot, Args: []*Expression{arg}} }

// EvalCtx supplies the row(s) an expression is evaluated against. Subject
// is populated for join conditions, where an attribute reference may need
// to be resolved against either side; a plain select condition only ever
// uses Object.
type EvalCtx struct {
	Object  value.Row
	Subject value.Row
}

// Evaluate walks the expression tree against ctx, returning the resulting
// Value. Comparison and boolean operators always yield Int(0)/Int(1).
func (e *Expression) Evaluate(ctx EvalCtx) (value.Value, error) {
	switch e.Op {
	case OpConst:
		return e.Const, nil
	case OpAttr:
		v := ctx.Object.Get(e.Attr)
		if v.IsNotFound() && ctx.Subject != nil {
			v = ctx.Subject.Get(e.Attr)
		}
		if v.IsNotFound() {
			return value.Value{}, NewUnboundAttributeError(string(e.Attr))
		}
		return v, nil
	case OpTrue:
		return value.Bool(true), nil
	case OpFalse:
		return value.Bool(false), nil
	case OpEq, OpNeq, OpLt, OpLeq, OpGt, OpGeq:
		return e.evalComparison(ctx)
	case OpAnd:
		lhs, err := e.Args[0].Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		if !lhs.Truthy() {
			return value.Bool(false), nil
		}
		rhs, err := e.Args[1].Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(rhs.Truthy()), nil
	case OpOr:
		lhs, err := e.Args[0].Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		if lhs.Truthy() {
			return value.Bool(true), nil
		}
		rhs, err := e.Args[1].Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(rhs.Truthy()), nil
	case OpNot:
		arg, err := e.Args[0].Evaluate(ctx)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(!arg.Truthy()), nil
	default:
		return value.Value{}, NewExpressionError(e, fmt.Errorf("unknown operator %q", e.Op))
	}
}

func (e *Expression) evalComparison(ctx EvalCtx) (value.Value, error) {
	lhs, err := e.Args[0].Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	rhs, err := e.Args[1].Evaluate(ctx)
	if err != nil {
		return value.Value{}, err
	}
	c := value.Compare(lhs, rhs)
	switch e.Op {
	case OpEq:
		return value.Bool(c == 0), nil
	case OpNeq:
		return value.Bool(c != 0), nil
	case OpLt:
		return value.Bool(c < 0), nil
	case OpLeq:
		return value.Bool(c <= 0), nil
	case OpGt:
		return value.Bool(c > 0), nil
	case OpGeq:
		return value.Bool(c >= 0), nil
	default:
		return value.Value{}, NewExpressionError(e, fmt.Errorf("not a comparison operator: %q", e.Op))
	}
}

// Test evaluates e as a predicate and reports the truthiness of the result
// (see value.Value.Truthy). It errors only when evaluation itself fails; a
// result that is not a boolean is not rejected.
func (e *Expression) Test(ctx EvalCtx) (bool, error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Attributes returns every attribute referenced anywhere in the tree,
// deduplicated. Used by the differentiator to compute which delta inputs
// can affect an expression's outcome.
func (e *Expression) Attributes() []value.Attribute {
	seen := map[value.Attribute]struct{}{}
	var walk func(*Expression)
	walk = func(n *Expression) {
		if n == nil {
			return
		}
		if n.Op == OpAttr {
			seen[n.Attr] = struct{}{}
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(e)
	out := make([]value.Attribute, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}

// AsEqualityConstant reports whether e has the shape (attr = const) or
// (const = attr), returning the attribute and constant if so. applySelect
// uses this to skip the general expression evaluator for the common
// single-attribute filter case, comparing the added row's attribute
// directly instead of walking the predicate tree.
func (e *Expression) AsEqualityConstant() (value.Attribute, value.Value, bool) {
	if e.Op != OpEq {
		return "", value.Value{}, false
	}
	lhs, rhs := e.Args[0], e.Args[1]
	if lhs.Op == OpAttr && rhs.Op == OpConst {
		return lhs.Attr, rhs.Const, true
	}
	if rhs.Op == OpAttr && lhs.Op == OpConst {
		return rhs.Attr, lhs.Const, true
	}
	return "", value.Value{}, false
}

// String renders the expression tree for debugging and dot-graph labels.
func (e *Expression) String() string {
	switch e.Op {
	case OpConst:
		return e.Const.String()
	case OpAttr:
		return string(e.Attr)
	case OpTrue:
		return "true"
	case OpFalse:
		return "false"
	case OpNot:
		return fmt.Sprintf("not(%s)", e.Args[0].String())
	case OpAnd, OpOr, OpEq, OpNeq, OpLt, OpLeq, OpGt, OpGeq:
		return fmt.Sprintf("(%s %s %s)", e.Args[0].String(), e.Op.String(), e.Args[1].String())
	default:
		return "<invalid expression>"
	}
}
