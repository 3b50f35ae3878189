// Package differentiate implements the incremental differentiator: given a
// relation tree and a set of changes to its base sources, it computes the
// resulting change to the tree's root without re-evaluating the whole tree.
//
// The design follows DBSP's central idea — that an operator's derivative
// can be computed from the derivatives of its inputs rather than by
// redoing its work from scratch — concretized here against the engine's
// concrete, tagged relation.Relation tree instead of DBSP's generic
// operator graph. Linear combinators (select, rename, project, update)
// propagate a delta row by row; set operators reconcile a small candidate
// set against the operands' maintained states; equijoin uses the
// bilinear expansion (added: ΔL⋈R_new, L_new⋈ΔR; removed: ΔL⋈R_old,
// L_old⋈ΔR); aggregate recomputes only the groups a delta row actually
// touches, and otherwise is recomputed outright from both operands'
// maintained states. Every strategy's result is always checked against
// a final, authoritative diff of old vs. new materialized state for that
// node, so an imprecise candidate set can only cost extra work, never
// correctness.
package differentiate

import (
	"context"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/l7mp/reldb/internal/dag"
	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// Change describes the rows added to and removed from a relation between
// two rounds. A row present in both Added and Removed never occurs: it
// nets out to nothing and is omitted from both.
type Change struct {
	Added, Removed relation.RowSet
}

// IsZero reports whether c carries no rows at all.
func (c Change) IsZero() bool {
	return c.Added.Size() == 0 && c.Removed.Size() == 0
}

// diff computes the minimal Change that turns old into new. Every
// derivative rule below funnels its result through diff before returning
// it, so a node's reported Change is always exactly correct even when the
// candidate rows it considered were an overapproximation.
func diff(old, new relation.RowSet) Change {
	return Change{Added: new.Difference(old), Removed: old.Difference(new)}
}

// Derivative maintains, for one relation tree, the materialized state of
// every node from the previous round plus whatever per-node bookkeeping
// its derivative rule needs (group counts for project/update, member lists
// for aggregate). Apply advances all of it by one round.
type Derivative struct {
	root *relation.Relation

	old map[*relation.Relation]relation.RowSet

	projectGroups map[*relation.Relation]map[string]*group
	updateGroups  map[*relation.Relation]map[string]*group
	aggMembers    map[*relation.Relation]map[string][]value.Row
	aggOutput     map[*relation.Relation]map[string]value.Row
	uniqueMatch   map[*relation.Relation]bool

	graph       *dag.Graph
	nodeLabel   map[*relation.Relation]string
	sourceLabel map[relation.Source]string
	sourceByKey map[string]relation.Source
	reachable   map[*relation.Relation]map[relation.Source]bool

	labelSeq int

	logger logr.Logger
}

// Build seeds a Derivative by evaluating root's tree once in full,
// recording every node's current result plus the incremental bookkeeping
// its derivative rule will need, and precomputing — via an internal/dag
// reachability graph over the tree's node and source labels — which base
// sources can possibly affect each node.
func Build(ctx context.Context, root *relation.Relation, logger logr.Logger) (*Derivative, error) {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	d := &Derivative{
		root:          root,
		old:           map[*relation.Relation]relation.RowSet{},
		projectGroups: map[*relation.Relation]map[string]*group{},
		updateGroups:  map[*relation.Relation]map[string]*group{},
		aggMembers:    map[*relation.Relation]map[string][]value.Row{},
		aggOutput:     map[*relation.Relation]map[string]value.Row{},
		uniqueMatch:   map[*relation.Relation]bool{},
		graph:         dag.New(),
		nodeLabel:     map[*relation.Relation]string{},
		sourceLabel:   map[relation.Source]string{},
		sourceByKey:   map[string]relation.Source{},
		reachable:     map[*relation.Relation]map[relation.Source]bool{},
		logger:        logger.WithName("differentiate"),
	}
	if _, err := d.seed(ctx, root); err != nil {
		return nil, err
	}
	d.indexReachability()
	d.logger.V(1).Info("built derivative", "nodes", len(d.nodeLabel), "sources", len(d.sourceLabel))
	return d, nil
}

func (d *Derivative) labelFor(n *relation.Relation) string {
	if l, ok := d.nodeLabel[n]; ok {
		return l
	}
	d.labelSeq++
	l := "n" + strconv.Itoa(d.labelSeq)
	d.nodeLabel[n] = l
	d.graph.AddNode(l)
	return l
}

func (d *Derivative) sourceLabelFor(s relation.Source) string {
	if l, ok := d.sourceLabel[s]; ok {
		return l
	}
	d.labelSeq++
	l := "s" + strconv.Itoa(d.labelSeq)
	d.sourceLabel[s] = l
	d.sourceByKey[l] = s
	d.graph.AddNode(l)
	return l
}

// indexReachability walks the graph built during seed and records, for
// every node, the set of base sources reachable from it — the information
// Apply's zero-preservation fast path is keyed on.
func (d *Derivative) indexReachability() {
	for node, label := range d.nodeLabel {
		reached := d.graph.Reachable(label)
		set := map[relation.Source]bool{}
		for _, l := range reached {
			if src, ok := d.sourceByKey[l]; ok {
				set[src] = true
			}
		}
		d.reachable[node] = set
	}
}

// seed evaluates node's subtree once in full, recording its result and
// every piece of per-kind state Apply will maintain incrementally from now
// on, and grows the reachability graph with one edge per child.
func (d *Derivative) seed(ctx context.Context, node *relation.Relation) (relation.RowSet, error) {
	label := d.labelFor(node)

	switch node.Kind {
	case relation.KindBase:
		srcLabel := d.sourceLabelFor(node.Source)
		d.graph.AddEdge(label, srcLabel)
		rows, err := node.Source.Rows(ctx)
		if err != nil {
			return nil, NewApplyError(node.Kind, err)
		}
		d.old[node] = rows
		return rows, nil

	case relation.KindUnion, relation.KindIntersect, relation.KindDifference,
		relation.KindEquijoin, relation.KindOtherwise:
		l, err := d.seed(ctx, node.Left)
		if err != nil {
			return nil, err
		}
		r, err := d.seed(ctx, node.Right)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Left))
		d.graph.AddEdge(label, d.labelFor(node.Right))

		var out relation.RowSet
		switch node.Kind {
		case relation.KindUnion:
			out = l.Union(r)
		case relation.KindIntersect:
			out = l.Intersect(r)
		case relation.KindDifference:
			out = l.Difference(r)
		case relation.KindEquijoin:
			out = joinRows(l, r, node.JoinAttrs)
		case relation.KindOtherwise:
			out = otherwiseRows(l, r, node.Key)
		}
		d.old[node] = out
		return out, nil

	case relation.KindProject:
		in, err := d.seed(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Input))
		grp := map[string]*group{}
		out := relation.RowSet{}
		for _, row := range in {
			outRow := row.Project(node.ProjectScheme)
			k := outRow.Key()
			if g, ok := grp[k]; ok {
				g.count++
			} else {
				grp[k] = &group{count: 1, row: outRow}
				out.Add(outRow)
			}
		}
		d.projectGroups[node] = grp
		d.old[node] = out
		return out, nil

	case relation.KindUpdate:
		in, err := d.seed(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Input))
		grp := map[string]*group{}
		out := relation.RowSet{}
		for _, row := range in {
			outRow, err := updatedRow(node, row)
			if err != nil {
				return nil, NewApplyError(node.Kind, err)
			}
			k := outRow.Key()
			if g, ok := grp[k]; ok {
				g.count++
			} else {
				grp[k] = &group{count: 1, row: outRow}
				out.Add(outRow)
			}
		}
		d.updateGroups[node] = grp
		d.old[node] = out
		return out, nil

	case relation.KindSelect:
		in, err := d.seed(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Input))
		out := relation.RowSet{}
		for _, row := range in {
			ok, err := node.Pred.Test(expr.EvalCtx{Object: row})
			if err != nil {
				return nil, NewApplyError(node.Kind, err)
			}
			if ok {
				out.Add(row)
			}
		}
		d.old[node] = out
		return out, nil

	case relation.KindRename:
		in, err := d.seed(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Input))
		out := relation.RowSet{}
		for _, row := range in {
			out.Add(row.Rename(node.Renames))
		}
		d.old[node] = out
		return out, nil

	case relation.KindUnique:
		in, err := d.seed(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Input))
		allMatch := true
		for _, row := range in {
			if !row.Get(node.UniqueAttr).Equal(node.UniqueValue) {
				allMatch = false
				break
			}
		}
		out := relation.RowSet{}
		if allMatch {
			out = in.Clone()
		}
		d.uniqueMatch[node] = allMatch
		d.old[node] = out
		return out, nil

	case relation.KindAggregate:
		in, err := d.seed(ctx, node.Input)
		if err != nil {
			return nil, err
		}
		d.graph.AddEdge(label, d.labelFor(node.Input))
		members := map[string][]value.Row{}
		for _, row := range in {
			gk := row.Project(node.GroupBy).Key()
			members[gk] = append(members[gk], row)
		}
		// An ungrouped aggregate always maintains its one group, even
		// with no members yet.
		if len(node.GroupBy) == 0 {
			if _, ok := members[""]; !ok {
				members[""] = nil
			}
		}
		output := map[string]value.Row{}
		out := relation.RowSet{}
		for gk, rows := range members {
			reduced, err := relation.Reduce(node.AggFunc, node.AggAttr, rows)
			if err != nil {
				return nil, NewApplyError(node.Kind, err)
			}
			outRow := groupKeyRow(node, rows).WithUpdates(
				value.NewRow(map[value.Attribute]value.Value{node.AggAs: reduced}))
			output[gk] = outRow
			out.Add(outRow)
		}
		d.aggMembers[node] = members
		d.aggOutput[node] = output
		d.old[node] = out
		return out, nil

	default:
		return nil, NewUnknownKindError(node.Kind)
	}
}

// updatedRow computes update's per-row output the same way
// relation.Relation's own evaluation does.
func updatedRow(node *relation.Relation, row value.Row) (value.Row, error) {
	if node.Pred == nil {
		return row.WithUpdates(node.Updates), nil
	}
	ok, err := node.Pred.Test(expr.EvalCtx{Object: row})
	if err != nil {
		return nil, err
	}
	if ok {
		return row.WithUpdates(node.Updates), nil
	}
	return row, nil
}

// Apply advances the derivative by one round given the changes observed on
// zero or more base sources, returning the resulting Change at root. Every
// visited node's maintained state is updated in place: the next Apply call
// continues from here.
func (d *Derivative) Apply(ctx context.Context, baseChanges map[relation.Source]Change) (Change, error) {
	if len(baseChanges) == 0 {
		return Change{}, nil
	}
	visited := map[*relation.Relation]Change{}
	c, err := d.apply(ctx, d.root, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	d.logger.V(4).Info("applied round", "added", c.Added.Size(), "removed", c.Removed.Size())
	return c, nil
}

func (d *Derivative) apply(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	if c, ok := visited[node]; ok {
		return c, nil
	}
	if !d.touches(node, baseChanges) {
		visited[node] = Change{}
		return Change{}, nil
	}

	var (
		result Change
		err    error
	)
	switch node.Kind {
	case relation.KindBase:
		result, err = d.applyBase(node, baseChanges)
	case relation.KindUnion, relation.KindIntersect, relation.KindDifference:
		result, err = d.applySetOp(ctx, node, baseChanges, visited)
	case relation.KindProject:
		result, err = d.applyProject(ctx, node, baseChanges, visited)
	case relation.KindUpdate:
		result, err = d.applyUpdate(ctx, node, baseChanges, visited)
	case relation.KindSelect:
		result, err = d.applySelect(ctx, node, baseChanges, visited)
	case relation.KindRename:
		result, err = d.applyRename(ctx, node, baseChanges, visited)
	case relation.KindUnique:
		result, err = d.applyUnique(ctx, node, baseChanges, visited)
	case relation.KindEquijoin:
		result, err = d.applyEquijoin(ctx, node, baseChanges, visited)
	case relation.KindAggregate:
		result, err = d.applyAggregate(ctx, node, baseChanges, visited)
	case relation.KindOtherwise:
		result, err = d.applyOtherwise(ctx, node, baseChanges, visited)
	default:
		err = NewUnknownKindError(node.Kind)
	}
	if err != nil {
		return Change{}, err
	}
	visited[node] = result
	return result, nil
}

// touches reports whether any base source in baseChanges is reachable from
// node — the zero-preservation fast path. When it is false, node's
// maintained old state is already node's new state: no base this round's
// changes could possibly reach ever feeds into it.
func (d *Derivative) touches(node *relation.Relation, baseChanges map[relation.Source]Change) bool {
	reach := d.reachable[node]
	for src := range baseChanges {
		if reach[src] {
			return true
		}
	}
	return false
}

func (d *Derivative) applyBase(node *relation.Relation, baseChanges map[relation.Source]Change) (Change, error) {
	c, ok := baseChanges[node.Source]
	if !ok {
		return Change{}, nil
	}
	old := d.old[node]
	next := old.Difference(c.Removed).Union(c.Added)
	final := diff(old, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applySetOp(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	oldSelf := d.old[node]

	cl, err := d.apply(ctx, node.Left, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	cr, err := d.apply(ctx, node.Right, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	newL := d.old[node.Left]
	newR := d.old[node.Right]

	candidates := relation.RowSet{}
	for _, row := range cl.Added {
		candidates.Add(row)
	}
	for _, row := range cl.Removed {
		candidates.Add(row)
	}
	for _, row := range cr.Added {
		candidates.Add(row)
	}
	for _, row := range cr.Removed {
		candidates.Add(row)
	}

	added := relation.RowSet{}
	removed := relation.RowSet{}
	for _, row := range candidates {
		wasIn := oldSelf.Contains(row)
		var isIn bool
		switch node.Kind {
		case relation.KindUnion:
			isIn = newL.Contains(row) || newR.Contains(row)
		case relation.KindIntersect:
			isIn = newL.Contains(row) && newR.Contains(row)
		case relation.KindDifference:
			isIn = newL.Contains(row) && !newR.Contains(row)
		}
		if isIn && !wasIn {
			added.Add(row)
		} else if !isIn && wasIn {
			removed.Add(row)
		}
	}

	next := oldSelf.Union(added).Difference(removed)
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applySelect(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	cin, err := d.apply(ctx, node.Input, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	oldSelf := d.old[node]
	next := oldSelf.Clone()
	for _, row := range cin.Removed {
		next.Remove(row)
	}

	filterAttr, filterVal, filterIsEq := node.Pred.AsEqualityConstant()
	for _, row := range cin.Added {
		if filterIsEq {
			// Cheap path: the filter is a bare (attr = const) test, so
			// comparing the added row's attribute directly is equivalent
			// to Test and skips walking the predicate tree.
			if row.Get(filterAttr).Equal(filterVal) {
				next.Add(row)
			}
			continue
		}
		ok, err := node.Pred.Test(expr.EvalCtx{Object: row})
		if err != nil {
			return Change{}, NewApplyError(node.Kind, err)
		}
		if ok {
			next.Add(row)
		}
	}
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applyRename(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	cin, err := d.apply(ctx, node.Input, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	oldSelf := d.old[node]
	next := oldSelf.Clone()
	for _, row := range cin.Removed {
		next.Remove(row.Rename(node.Renames))
	}
	for _, row := range cin.Added {
		next.Add(row.Rename(node.Renames))
	}
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

// applyUnique maintains Unique's all-rows-match-v gate. Whether the gate
// currently holds is tracked in uniqueMatch. A newly added row that
// disagrees with v shuts the gate to empty without a scan; while the gate
// is shut, every round rescans the input's current state, since that is
// the only way to tell whether the gate has reopened. Otherwise the delta
// passes straight through.
func (d *Derivative) applyUnique(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	cin, err := d.apply(ctx, node.Input, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	oldSelf := d.old[node]
	wasMatch := d.uniqueMatch[node]

	violated := false
	for _, row := range cin.Added {
		if !row.Get(node.UniqueAttr).Equal(node.UniqueValue) {
			violated = true
			break
		}
	}

	var (
		next     relation.RowSet
		nowMatch bool
	)
	switch {
	case wasMatch && !violated:
		next = oldSelf.Union(cin.Added).Difference(cin.Removed)
		nowMatch = true
	case wasMatch && violated:
		next = relation.RowSet{}
		nowMatch = false
	default:
		nowMatch = true
		for _, row := range d.old[node.Input] {
			if !row.Get(node.UniqueAttr).Equal(node.UniqueValue) {
				nowMatch = false
				break
			}
		}
		if nowMatch {
			next = d.old[node.Input].Clone()
		} else {
			next = relation.RowSet{}
		}
	}
	d.uniqueMatch[node] = nowMatch

	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applyProject(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	cin, err := d.apply(ctx, node.Input, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	grp := d.projectGroups[node]
	added := relation.RowSet{}
	removed := relation.RowSet{}
	for _, row := range cin.Removed {
		k := row.Project(node.ProjectScheme).Key()
		if g, ok := grp[k]; ok {
			g.count--
			if g.count <= 0 {
				removed.Add(g.row)
				delete(grp, k)
			}
		}
	}
	for _, row := range cin.Added {
		outRow := row.Project(node.ProjectScheme)
		k := outRow.Key()
		if g, ok := grp[k]; ok {
			g.count++
		} else {
			grp[k] = &group{count: 1, row: outRow}
			added.Add(outRow)
		}
	}
	oldSelf := d.old[node]
	next := oldSelf.Difference(removed).Union(added)
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applyUpdate(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	cin, err := d.apply(ctx, node.Input, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	grp := d.updateGroups[node]
	added := relation.RowSet{}
	removed := relation.RowSet{}
	for _, row := range cin.Removed {
		outRow, err := updatedRow(node, row)
		if err != nil {
			return Change{}, NewApplyError(node.Kind, err)
		}
		k := outRow.Key()
		if g, ok := grp[k]; ok {
			g.count--
			if g.count <= 0 {
				removed.Add(g.row)
				delete(grp, k)
			}
		}
	}
	for _, row := range cin.Added {
		outRow, err := updatedRow(node, row)
		if err != nil {
			return Change{}, NewApplyError(node.Kind, err)
		}
		k := outRow.Key()
		if g, ok := grp[k]; ok {
			g.count++
		} else {
			grp[k] = &group{count: 1, row: outRow}
			added.Add(outRow)
		}
	}
	oldSelf := d.old[node]
	next := oldSelf.Difference(removed).Union(added)
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applyEquijoin(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	oldL := d.old[node.Left]
	oldR := d.old[node.Right]

	cl, err := d.apply(ctx, node.Left, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	cr, err := d.apply(ctx, node.Right, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}

	newL := d.old[node.Left]
	newR := d.old[node.Right]

	addedJoin := joinRows(cl.Added, newR, node.JoinAttrs).
		Union(joinRows(newL, cr.Added, node.JoinAttrs))
	removedJoin := joinRows(cl.Removed, oldR, node.JoinAttrs).
		Union(joinRows(oldL, cr.Removed, node.JoinAttrs))

	oldSelf := d.old[node]
	next := oldSelf.Union(addedJoin).Difference(removedJoin)
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applyOtherwise(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	if _, err := d.apply(ctx, node.Left, baseChanges, visited); err != nil {
		return Change{}, err
	}
	if _, err := d.apply(ctx, node.Right, baseChanges, visited); err != nil {
		return Change{}, err
	}
	oldSelf := d.old[node]
	next := otherwiseRows(d.old[node.Left], d.old[node.Right], node.Key)
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

func (d *Derivative) applyAggregate(ctx context.Context, node *relation.Relation, baseChanges map[relation.Source]Change, visited map[*relation.Relation]Change) (Change, error) {
	cin, err := d.apply(ctx, node.Input, baseChanges, visited)
	if err != nil {
		return Change{}, err
	}
	members := d.aggMembers[node]
	output := d.aggOutput[node]

	affected := map[string]bool{}
	for _, row := range cin.Removed {
		gk := row.Project(node.GroupBy).Key()
		members[gk] = removeRow(members[gk], row)
		affected[gk] = true
	}
	for _, row := range cin.Added {
		gk := row.Project(node.GroupBy).Key()
		members[gk] = append(members[gk], row)
		affected[gk] = true
	}

	oldSelf := d.old[node]
	next := oldSelf.Clone()
	for gk := range affected {
		if prev, had := output[gk]; had {
			next.Remove(prev)
		}
		rows := members[gk]
		// An ungrouped aggregate keeps its single group even once its
		// last member is removed: count/min/max/sum over nothing is
		// still a value, never an absent row.
		if len(rows) == 0 && len(node.GroupBy) != 0 {
			delete(output, gk)
			delete(members, gk)
			continue
		}
		reduced, err := relation.Reduce(node.AggFunc, node.AggAttr, rows)
		if err != nil {
			return Change{}, NewApplyError(node.Kind, err)
		}
		outRow := groupKeyRow(node, rows).WithUpdates(
			value.NewRow(map[value.Attribute]value.Value{node.AggAs: reduced}))
		next.Add(outRow)
		output[gk] = outRow
	}
	final := diff(oldSelf, next)
	d.old[node] = next
	return final, nil
}

// groupKeyRow returns an aggregate group's key-attribute prefix, the same
// way evaluating Aggregate from scratch would. It is guarded against an
// empty rows slice, which only happens for the ungrouped (GroupBy empty)
// case — there the key projection is the empty row regardless.
func groupKeyRow(node *relation.Relation, rows []value.Row) value.Row {
	if len(rows) == 0 {
		return value.NewRow(nil)
	}
	return rows[0].Project(node.GroupBy)
}

// Current returns node's materialized state as of the most recent Build or
// Apply call, without recomputing anything. Used by tests and by
// pkg/visualize to annotate a dot-rendered derivative with live row counts.
func (d *Derivative) Current(node *relation.Relation) relation.RowSet {
	return d.old[node]
}

// Root returns the relation tree this Derivative was built over.
func (d *Derivative) Root() *relation.Relation {
	return d.root
}
