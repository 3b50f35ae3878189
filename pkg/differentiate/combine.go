package differentiate

import (
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// group tracks, for a many-to-one node (project, update), how many
// surviving input rows currently map onto one output row — the engine's
// analogue of the teacher's DocumentZSet count, clamped to the output's set
// semantics: the output row exists exactly while count > 0.
type group struct {
	count int
	row   value.Row
}

// joinRows matches every row of l against every row of r on attrs and
// merges matching pairs, mirroring relation.Relation's own equijoin combine
// step but operating directly on already-materialized row sets rather than
// walking a subtree.
func joinRows(l, r relation.RowSet, attrs []relation.JoinAttrPair) relation.RowSet {
	out := relation.RowSet{}
	for _, lrow := range l {
		for _, rrow := range r {
			if joinMatch(lrow, rrow, attrs) {
				out.Add(lrow.Merge(rrow, false))
			}
		}
	}
	return out
}

func joinMatch(l, r value.Row, attrs []relation.JoinAttrPair) bool {
	for _, p := range attrs {
		if !l.Get(p.Left).Equal(r.Get(p.Right)) {
			return false
		}
	}
	return true
}

// otherwiseRows recomputes otherwise's output from the fully materialized
// state of both operands: primary's rows, plus any fallback row whose
// projection onto key agrees with no primary row. Unlike the set-operator
// and join derivatives, otherwise is recomputed outright rather than
// incrementally patched — its combine step is cheap and the candidate
// bookkeeping needed to patch it in place would rival the cost of just
// redoing it, so there is no incremental shortcut worth the complexity.
func otherwiseRows(primary, fallback relation.RowSet, key value.Scheme) relation.RowSet {
	primaryKeys := make(relation.RowSet, primary.Size())
	for _, row := range primary {
		primaryKeys.Add(row.Project(key))
	}
	out := primary.Clone()
	for _, row := range fallback {
		if !primaryKeys.Contains(row.Project(key)) {
			out.Add(row)
		}
	}
	return out
}

// removeRow returns rows with the first element matching target (by Key)
// removed.
func removeRow(rows []value.Row, target value.Row) []value.Row {
	for i, row := range rows {
		if row.Key() == target.Key() {
			return append(rows[:i:i], rows[i+1:]...)
		}
	}
	return rows
}
