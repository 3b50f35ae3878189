// Package relation implements the lazy relational algebra: a Relation is
// an expression tree over base (storage-backed) relations and a small set
// of algebraic combinators — union, intersection, difference, project,
// select, rename, equijoin, aggregate, otherwise, unique, and update.
// Evaluation walks the tree on demand; nothing is computed until Eval is
// called, mirroring the teacher's operator-graph evaluation model (see
// dbsp.Operator.Process) but over a concrete tagged tree rather than an
// interface, since the differentiator (pkg/differentiate) needs to
// pattern-match on node shape to build derivatives.
package relation

import (
	"context"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/value"
)

// Kind identifies the shape of a Relation node.
type Kind int

const (
	KindBase Kind = iota
	KindUnion
	KindIntersect
	KindDifference
	KindProject
	KindSelect
	KindRename
	KindEquijoin
	KindAggregate
	KindOtherwise
	KindUnique
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "base"
	case KindUnion:
		return "union"
	case KindIntersect:
		return "intersect"
	case KindDifference:
		return "difference"
	case KindProject:
		return "project"
	case KindSelect:
		return "select"
	case KindRename:
		return "rename"
	case KindEquijoin:
		return "equijoin"
	case KindAggregate:
		return "aggregate"
	case KindOtherwise:
		return "otherwise"
	case KindUnique:
		return "unique"
	case KindUpdate:
		return "update"
	default:
		return "<unknown>"
	}
}

// AggFunc identifies an aggregate combinator's reduction function.
type AggFunc int

const (
	AggMin AggFunc = iota
	AggMax
	AggCount
	AggSum
)

func (f AggFunc) String() string {
	switch f {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	default:
		return "<unknown>"
	}
}

// Source is implemented by anything a base Relation can be built over: a
// raw storage adapter or a change-logging relation. It is kept minimal so
// that pkg/storage and pkg/changelog need not import pkg/relation.
type Source interface {
	Scheme() value.Scheme
	Rows(ctx context.Context) (RowSet, error)
}

// Relation is a node in a relational-algebra expression tree. Every
// constructor below validates what it cheaply can (matching schemes,
// valid rename maps) and panics on a static shape error, the same way
// the teacher's computation graph rejects a malformed pipeline at build
// time rather than at evaluation time.
type Relation struct {
	Kind Kind

	// KindBase
	Source Source

	// unary node input (select, project, rename, aggregate, unique, update)
	Input *Relation

	// KindUnion, KindIntersect, KindDifference, KindEquijoin, KindOtherwise
	Left, Right *Relation

	// KindSelect: the row must satisfy Pred
	Pred *expr.Expression

	// KindProject: attributes retained
	ProjectScheme value.Scheme

	// KindRename: old attribute -> new attribute, must be a bijection
	Renames map[value.Attribute]value.Attribute

	// KindEquijoin: attributes compared pairwise for equality, left side
	// first in each pair
	JoinAttrs []JoinAttrPair

	// KindAggregate
	GroupBy  value.Scheme
	AggFunc  AggFunc
	AggAttr  value.Attribute
	AggAs    value.Attribute

	// KindOtherwise: rows of Left win; a Right row is kept only if no
	// Left row agrees with it on Key
	Key value.Scheme

	// KindUnique: input if every one of its rows agrees with UniqueValue
	// on UniqueAttr, otherwise empty
	UniqueAttr  value.Attribute
	UniqueValue value.Value

	// KindUpdate: overwrite these attributes on every row that matches
	// Pred (a nil Pred updates every row)
	Updates value.Row

	scheme value.Scheme
}

// JoinAttrPair names one equality condition of an equijoin.
type JoinAttrPair struct {
	Left, Right value.Attribute
}

// Base wraps a Source as a leaf relation.
func Base(src Source) *Relation {
	return &Relation{Kind: KindBase, Source: src, scheme: src.Scheme()}
}

// Union returns a ∪ b. a and b must share a scheme.
func Union(a, b *Relation) *Relation {
	mustEqualScheme("union", a, b)
	return &Relation{Kind: KindUnion, Left: a, Right: b, scheme: a.Scheme()}
}

// Intersect returns a ∩ b. a and b must share a scheme.
func Intersect(a, b *Relation) *Relation {
	mustEqualScheme("intersect", a, b)
	return &Relation{Kind: KindIntersect, Left: a, Right: b, scheme: a.Scheme()}
}

// Difference returns a \ b. a and b must share a scheme.
func Difference(a, b *Relation) *Relation {
	mustEqualScheme("difference", a, b)
	return &Relation{Kind: KindDifference, Left: a, Right: b, scheme: a.Scheme()}
}

// Project restricts input to the attributes in s. s must be a subset of
// input's scheme.
func Project(input *Relation, s value.Scheme) *Relation {
	if !s.SubsetOf(input.Scheme()) {
		panic("relation: project scheme is not a subset of the input scheme")
	}
	return &Relation{Kind: KindProject, Input: input, ProjectScheme: s.Clone(), scheme: s.Clone()}
}

// Select keeps only the rows of input for which pred evaluates truthy.
func Select(input *Relation, pred *expr.Expression) *Relation {
	return &Relation{Kind: KindSelect, Input: input, Pred: pred, scheme: input.Scheme()}
}

// Rename replaces attribute names per renames, which must be a bijection
// introducing no collision with an attribute of input's scheme that is
// not itself being renamed.
func Rename(input *Relation, renames map[value.Attribute]value.Attribute) *Relation {
	if err := ValidateRename(input.Scheme(), renames); err != nil {
		panic("relation: " + err.Error())
	}
	s := input.Scheme().Clone()
	for old, new := range renames {
		delete(s, old)
		s[new] = struct{}{}
	}
	return &Relation{Kind: KindRename, Input: input, Renames: renames, scheme: s}
}

// Equijoin matches rows of left and right pairwise-equal on attrs, and
// merges each matching pair into one row over the union of both schemes.
// Where an attribute name appears on both sides and is not itself an
// equated pair, left's value wins.
func Equijoin(left, right *Relation, attrs []JoinAttrPair) *Relation {
	return &Relation{
		Kind: KindEquijoin, Left: left, Right: right, JoinAttrs: attrs,
		scheme: left.Scheme().Union(right.Scheme()),
	}
}

// Aggregate groups input's rows by groupBy and reduces aggAttr within
// each group via fn, producing one output row per group containing the
// group-by attributes plus the reduction under outAttr.
func Aggregate(input *Relation, groupBy value.Scheme, fn AggFunc, aggAttr, outAttr value.Attribute) *Relation {
	if !groupBy.SubsetOf(input.Scheme()) {
		panic("relation: aggregate group-by is not a subset of the input scheme")
	}
	s := groupBy.Clone()
	s[outAttr] = struct{}{}
	return &Relation{
		Kind: KindAggregate, Input: input, GroupBy: groupBy, AggFunc: fn,
		AggAttr: aggAttr, AggAs: outAttr, scheme: s,
	}
}

// Otherwise returns primary's rows, plus any row of fallback whose
// projection onto key agrees with no row of primary. primary and
// fallback must share a scheme, and key must be a subset of it. This
// is the engine's default/coalesce combinator: selecting on disjoint
// equality conditions and chaining with Otherwise implements if/else
// dispatch over a key attribute.
func Otherwise(primary, fallback *Relation, key value.Scheme) *Relation {
	mustEqualScheme("otherwise", primary, fallback)
	if !key.SubsetOf(primary.Scheme()) {
		panic("relation: otherwise key is not a subset of the relation scheme")
	}
	return &Relation{Kind: KindOtherwise, Left: primary, Right: fallback, Key: key, scheme: primary.Scheme()}
}

// Unique asserts that attr is single-valued across input: it returns
// input unchanged if every row agrees with v on attr, and the empty
// relation otherwise. It is the engine's integrity gate for the shape
// "this relation had better be a singleton-per-key view" — a select on a
// key attribute composed with Unique turns a multi-row mismatch into a
// silently empty result rather than an ambiguous one.
func Unique(input *Relation, attr value.Attribute, v value.Value) *Relation {
	if !input.Scheme().Contains(attr) {
		panic("relation: unique attribute is not present in the input scheme")
	}
	return &Relation{Kind: KindUnique, Input: input, UniqueAttr: attr, UniqueValue: v, scheme: input.Scheme()}
}

// Update overwrites, on every row of input matching pred (nil matches
// every row), the attributes named in updates.
func Update(input *Relation, pred *expr.Expression, updates value.Row) *Relation {
	return &Relation{Kind: KindUpdate, Input: input, Pred: pred, Updates: updates, scheme: input.Scheme()}
}

// Scheme returns the relation's output scheme, computed at construction
// time.
func (r *Relation) Scheme() value.Scheme { return r.scheme }

func mustEqualScheme(op string, a, b *Relation) {
	if !a.Scheme().Equal(b.Scheme()) {
		panic("relation: " + op + " requires both operands to share a scheme")
	}
}

// ValidateRename checks that renames is a bijection over s that
// introduces no attribute collision: every key of renames must be in s,
// no two keys may map to the same new name, and a new name may not
// collide with an attribute of s that survives unrenamed.
func ValidateRename(s value.Scheme, renames map[value.Attribute]value.Attribute) error {
	seen := make(map[value.Attribute]struct{}, len(renames))
	for old, new := range renames {
		if !s.Contains(old) {
			return NewRenameError(old, "not present in the input scheme")
		}
		if _, dup := seen[new]; dup {
			return NewRenameError(new, "is the target of more than one rename")
		}
		seen[new] = struct{}{}
	}
	for old := range s {
		if _, renamed := renames[old]; renamed {
			continue
		}
		if _, collides := seen[old]; collides {
			return NewRenameError(old, "collides with a renamed attribute")
		}
	}
	return nil
}
