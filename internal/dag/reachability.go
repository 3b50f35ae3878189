package dag

import "sort"

// Reachable returns every node reachable from "from" by following edges
// transitively, not including "from" itself. pkg/differentiate builds one
// Graph per relation tree (an edge from a node to each of its children) and
// uses Reachable to precompute, per node, which base sources can possibly
// affect it — the basis for skipping recomputation of a subtree that no
// change in the current round can reach.
func (g *Graph) Reachable(from string) []string {
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.Edges(n) {
			if !seen[e] {
				seen[e] = true
				stack = append(stack, e)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
