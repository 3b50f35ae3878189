package relation

import (
	"sort"

	"github.com/l7mp/reldb/pkg/value"
)

// RowSet is a finite set of distinct rows, keyed by each row's canonical
// encoding. Relations have set semantics throughout this engine: a row
// either belongs to a relation's result or it does not, with no
// multiplicity. This mirrors the teacher's DocumentZSet with every count
// clamped to {0,1}.
type RowSet map[string]value.Row

// NewRowSet builds a RowSet from a slice of rows, discarding duplicates.
func NewRowSet(rows ...value.Row) RowSet {
	s := make(RowSet, len(rows))
	for _, r := range rows {
		s[r.Key()] = r
	}
	return s
}

// Add inserts r into s, overwriting nothing (a duplicate key is a no-op).
func (s RowSet) Add(r value.Row) { s[r.Key()] = r }

// Remove deletes r from s if present.
func (s RowSet) Remove(r value.Row) { delete(s, r.Key()) }

// Contains reports whether r (by canonical encoding) is a member of s.
func (s RowSet) Contains(r value.Row) bool {
	_, ok := s[r.Key()]
	return ok
}

// Clone returns a shallow copy of s.
func (s RowSet) Clone() RowSet {
	out := make(RowSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Union returns the set union of s and o.
func (s RowSet) Union(o RowSet) RowSet {
	out := s.Clone()
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Intersect returns the set intersection of s and o.
func (s RowSet) Intersect(o RowSet) RowSet {
	out := make(RowSet)
	for k, v := range s {
		if _, ok := o[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Difference returns the rows of s that are not in o.
func (s RowSet) Difference(o RowSet) RowSet {
	out := make(RowSet)
	for k, v := range s {
		if _, ok := o[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// Slice returns the set's rows in deterministic (key-sorted) order.
func (s RowSet) Slice() []value.Row {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]value.Row, len(keys))
	for i, k := range keys {
		out[i] = s[k]
	}
	return out
}

// Size returns the number of rows in s.
func (s RowSet) Size() int { return len(s) }

// IsEmpty reports whether s has no rows.
func (s RowSet) IsEmpty() bool { return len(s) == 0 }

// OneRow returns s's single row. ok is false when s does not contain
// exactly one row — querying a view expected to collapse to a singleton
// (e.g. a select on a key attribute) should treat a multi-row result the
// same as an empty one: not the answer it asked for.
func (s RowSet) OneRow() (row value.Row, ok bool) {
	if len(s) != 1 {
		return value.Row{}, false
	}
	for _, r := range s {
		return r, true
	}
	return value.Row{}, false
}

// OneValue returns attr's value out of s's single row, or None (ok=false)
// if s is not a singleton.
func (s RowSet) OneValue(attr value.Attribute) (v value.Value, ok bool) {
	r, ok := s.OneRow()
	if !ok {
		return value.Value{}, false
	}
	return r.Get(attr), true
}

// OneString is OneValue narrowed to a text attribute.
func (s RowSet) OneString(attr value.Attribute) (string, bool) {
	v, ok := s.OneValue(attr)
	if !ok {
		return "", false
	}
	return v.AsText()
}
