// Package query is the planner and runner for a relation expression tree:
// Plan walks the tree once to collect its distinct nodes, topological
// order and base sources; Runner pairs that plan with an asyncmgr.Manager
// so a caller gets a single handle to mutate base sources, read the
// query's current result and subscribe to its changes.
//
// Grounded on the teacher's dbsp.LinearChainExecutor, which validates a
// graph before accepting it and then runs it step by step, and on
// pkg/view.NewBaseView's "register an aggregation against a cache, then
// process" shape — generalized here from one K8s object pipeline per view
// to an arbitrary relation tree over the engine's own Source contract.
package query

import (
	"github.com/l7mp/reldb/pkg/relation"
)

// Plan is the static shape of a query: every distinct node in its
// expression tree in a child-before-parent order, and the distinct base
// sources it reads from.
type Plan struct {
	Root    *relation.Relation
	Nodes   []*relation.Relation
	Sources []relation.Source
}

// Compile walks root once and builds its Plan. A node reachable through
// more than one path (a shared subexpression) appears once, in Nodes, at
// the position of its first topological appearance.
func Compile(root *relation.Relation) *Plan {
	p := &Plan{Root: root}
	seen := map[*relation.Relation]bool{}
	sourceSeen := map[relation.Source]bool{}
	var walk func(n *relation.Relation)
	walk = func(n *relation.Relation) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		for _, child := range children(n) {
			walk(child)
		}
		if n.Kind == relation.KindBase && n.Source != nil && !sourceSeen[n.Source] {
			sourceSeen[n.Source] = true
			p.Sources = append(p.Sources, n.Source)
		}
		p.Nodes = append(p.Nodes, n)
	}
	walk(root)
	return p
}

// children returns n's direct child nodes, in evaluation order, skipping
// nils. A base node has none.
func children(n *relation.Relation) []*relation.Relation {
	var out []*relation.Relation
	if n.Input != nil {
		out = append(out, n.Input)
	}
	if n.Left != nil {
		out = append(out, n.Left)
	}
	if n.Right != nil {
		out = append(out, n.Right)
	}
	return out
}

// Depth returns the length of the longest path from root to a base node,
// the same metric pkg/visualize uses to lay a derivative's dot graph out
// top to bottom.
func (p *Plan) Depth() int {
	memo := map[*relation.Relation]int{}
	var depth func(n *relation.Relation) int
	depth = func(n *relation.Relation) int {
		if d, ok := memo[n]; ok {
			return d
		}
		d := 0
		for _, c := range children(n) {
			if cd := depth(c) + 1; cd > d {
				d = cd
			}
		}
		memo[n] = d
		return d
	}
	return depth(p.Root)
}
