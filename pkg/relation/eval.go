package relation

import (
	"context"
	"errors"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/value"
)

var errUnknownKind = errors.New("unrecognized relation node kind")

// Eval materializes r's result set, walking the expression tree bottom
// up. Nothing in the tree is cached across calls: callers that want
// incremental re-evaluation use pkg/differentiate instead of calling Eval
// repeatedly.
func (r *Relation) Eval(ctx context.Context) (RowSet, error) {
	switch r.Kind {
	case KindBase:
		rows, err := r.Source.Rows(ctx)
		if err != nil {
			return nil, NewEvaluationError(r.Kind, err)
		}
		return rows, nil

	case KindUnion:
		l, err := r.Left.Eval(ctx)
		if err != nil {
			return nil, err
		}
		rt, err := r.Right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return l.Union(rt), nil

	case KindIntersect:
		l, err := r.Left.Eval(ctx)
		if err != nil {
			return nil, err
		}
		rt, err := r.Right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return l.Intersect(rt), nil

	case KindDifference:
		l, err := r.Left.Eval(ctx)
		if err != nil {
			return nil, err
		}
		rt, err := r.Right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return l.Difference(rt), nil

	case KindProject:
		in, err := r.Input.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out := make(RowSet, len(in))
		for _, row := range in {
			out.Add(row.Project(r.ProjectScheme))
		}
		return out, nil

	case KindSelect:
		return r.evalSelect(ctx)

	case KindRename:
		in, err := r.Input.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out := make(RowSet, len(in))
		for _, row := range in {
			out.Add(row.Rename(r.Renames))
		}
		return out, nil

	case KindEquijoin:
		return r.evalEquijoin(ctx)

	case KindAggregate:
		return r.evalAggregate(ctx)

	case KindOtherwise:
		return r.evalOtherwise(ctx)

	case KindUnique:
		return r.evalUnique(ctx)

	case KindUpdate:
		return r.evalUpdate(ctx)

	default:
		return nil, NewEvaluationError(r.Kind, errUnknownKind)
	}
}

// OneValue evaluates r and returns attr's value out of its single
// resulting row. ok is false (None) if r's result is empty or has more
// than one row.
func (r *Relation) OneValue(ctx context.Context, attr value.Attribute) (value.Value, bool, error) {
	rows, err := r.Eval(ctx)
	if err != nil {
		return value.Value{}, false, err
	}
	v, ok := rows.OneValue(attr)
	return v, ok, nil
}

// OneString is OneValue narrowed to a text attribute.
func (r *Relation) OneString(ctx context.Context, attr value.Attribute) (string, bool, error) {
	rows, err := r.Eval(ctx)
	if err != nil {
		return "", false, err
	}
	s, ok := rows.OneString(attr)
	return s, ok, nil
}

// IsEmpty evaluates r and reports whether its result has no rows.
func (r *Relation) IsEmpty(ctx context.Context) (bool, error) {
	rows, err := r.Eval(ctx)
	if err != nil {
		return false, err
	}
	return rows.IsEmpty(), nil
}

// nativeSelector mirrors pkg/storage.NativeSelector structurally rather
// than by import, since pkg/storage already imports pkg/relation for
// relation.Source — an adapter that can push a predicate down into its
// own query engine satisfies this without either package depending on
// the other's concrete type.
type nativeSelector interface {
	SelectNative(ctx context.Context, pred *expr.Expression) (RowSet, bool, error)
}

func (r *Relation) evalSelect(ctx context.Context) (RowSet, error) {
	if r.Input.Kind == KindBase {
		if ns, ok := r.Input.Source.(nativeSelector); ok {
			rows, handled, err := ns.SelectNative(ctx, r.Pred)
			if err != nil {
				return nil, NewEvaluationError(r.Kind, err)
			}
			if handled {
				return rows, nil
			}
		}
	}

	in, err := r.Input.Eval(ctx)
	if err != nil {
		return nil, err
	}
	out := make(RowSet)
	for _, row := range in {
		ok, err := r.Pred.Test(expr.EvalCtx{Object: row})
		if err != nil {
			return nil, NewEvaluationError(r.Kind, err)
		}
		if ok {
			out.Add(row)
		}
	}
	return out, nil
}

// rowsMatch reports whether left and right agree on every pair in attrs.
func rowsMatch(left, right value.Row, attrs []JoinAttrPair) bool {
	for _, p := range attrs {
		if !left.Get(p.Left).Equal(right.Get(p.Right)) {
			return false
		}
	}
	return true
}

func (r *Relation) evalEquijoin(ctx context.Context) (RowSet, error) {
	l, err := r.Left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	rt, err := r.Right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	out := make(RowSet)
	for _, lrow := range l {
		for _, rrow := range rt {
			if rowsMatch(lrow, rrow, r.JoinAttrs) {
				out.Add(lrow.Merge(rrow, false))
			}
		}
	}
	return out, nil
}

func (r *Relation) evalAggregate(ctx context.Context) (RowSet, error) {
	in, err := r.Input.Eval(ctx)
	if err != nil {
		return nil, err
	}
	groups := map[string][]value.Row{}
	keys := map[string]value.Row{}
	for _, row := range in.Slice() {
		key := row.Project(r.GroupBy)
		k := key.Key()
		groups[k] = append(groups[k], row)
		keys[k] = key
	}
	// An ungrouped aggregate (GroupBy empty) always has exactly one group,
	// even over zero input rows: count/min/max/sum over nothing is still
	// a value, never an absent row.
	if len(r.GroupBy) == 0 {
		if _, ok := groups[""]; !ok {
			groups[""] = nil
			keys[""] = value.NewRow(nil)
		}
	}
	out := make(RowSet, len(groups))
	for k, rows := range groups {
		reduced, err := reduce(r.AggFunc, r.AggAttr, rows)
		if err != nil {
			return nil, NewEvaluationError(r.Kind, err)
		}
		out.Add(keys[k].WithUpdates(value.NewRow(map[value.Attribute]value.Value{r.AggAs: reduced})))
	}
	return out, nil
}

func (r *Relation) evalUnique(ctx context.Context) (RowSet, error) {
	in, err := r.Input.Eval(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range in {
		if !row.Get(r.UniqueAttr).Equal(r.UniqueValue) {
			return RowSet{}, nil
		}
	}
	return in, nil
}

// Reduce applies an aggregate function over rows the same way Aggregate's
// own evaluation does. Exported so pkg/differentiate can recompute a single
// affected group's reduction without re-implementing the function table.
func Reduce(fn AggFunc, attr value.Attribute, rows []value.Row) (value.Value, error) {
	return reduce(fn, attr, rows)
}

func reduce(fn AggFunc, attr value.Attribute, rows []value.Row) (value.Value, error) {
	if fn == AggCount {
		return value.Int64(int64(len(rows))), nil
	}
	if len(rows) == 0 {
		return value.NullValue(), nil
	}
	switch fn {
	case AggMin:
		best := rows[0].Get(attr)
		for _, row := range rows[1:] {
			if v := row.Get(attr); value.Compare(v, best) < 0 {
				best = v
			}
		}
		return best, nil
	case AggMax:
		best := rows[0].Get(attr)
		for _, row := range rows[1:] {
			if v := row.Get(attr); value.Compare(v, best) > 0 {
				best = v
			}
		}
		return best, nil
	case AggSum:
		var sumI int64
		var sumR float64
		isReal := false
		for _, row := range rows {
			v := row.Get(attr)
			if f, ok := v.AsReal(); ok {
				isReal = true
				sumR += f
			} else if i, ok := v.AsInt(); ok {
				sumI += i
			}
		}
		if isReal {
			return value.Real64(sumR + float64(sumI)), nil
		}
		return value.Int64(sumI), nil
	default:
		return value.Value{}, NewEvaluationError(KindAggregate, errUnknownKind)
	}
}

func (r *Relation) evalOtherwise(ctx context.Context) (RowSet, error) {
	primary, err := r.Left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	fallback, err := r.Right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	primaryKeys := make(RowSet, primary.Size())
	for _, row := range primary {
		primaryKeys.Add(row.Project(r.Key))
	}
	out := primary.Clone()
	for _, row := range fallback {
		if !primaryKeys.Contains(row.Project(r.Key)) {
			out.Add(row)
		}
	}
	return out, nil
}

func (r *Relation) evalUpdate(ctx context.Context) (RowSet, error) {
	in, err := r.Input.Eval(ctx)
	if err != nil {
		return nil, err
	}
	out := make(RowSet, len(in))
	for _, row := range in {
		if r.Pred == nil {
			out.Add(row.WithUpdates(r.Updates))
			continue
		}
		ok, err := r.Pred.Test(expr.EvalCtx{Object: row})
		if err != nil {
			return nil, NewEvaluationError(r.Kind, err)
		}
		if ok {
			out.Add(row.WithUpdates(r.Updates))
		} else {
			out.Add(row)
		}
	}
	return out, nil
}
