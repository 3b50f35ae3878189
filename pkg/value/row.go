package value

import (
	"sort"
	"strconv"
)

// Row is a finite mapping from attribute to value. Row is treated as an
// immutable value throughout the engine: every transformation returns a
// new Row rather than mutating the receiver, mirroring the teacher's
// deep-copy-on-write discipline for documents.
type Row map[Attribute]Value

// NewRow builds a Row from pairs of (Attribute, Value). It panics if a
// stored value is the notFound sentinel, since a row must never contain
// it (spec §3 invariant).
func NewRow(pairs map[Attribute]Value) Row {
	r := make(Row, len(pairs))
	for a, v := range pairs {
		if v.IsNotFound() {
			panic("value: a row must never store the notFound sentinel for attribute " + string(a))
		}
		r[a] = v
	}
	return r
}

// Get looks up attr, returning NotFoundValue() if absent.
func (r Row) Get(attr Attribute) Value {
	if v, ok := r[attr]; ok {
		return v
	}
	return NotFoundValue()
}

// Scheme returns the set of attributes present in the row.
func (r Row) Scheme() Scheme {
	s := make(Scheme, len(r))
	for a := range r {
		s[a] = struct{}{}
	}
	return s
}

// Satisfies reports whether the row's keys equal the given scheme exactly.
func (r Row) Satisfies(s Scheme) bool {
	if len(r) != len(s) {
		return false
	}
	for a := range r {
		if !s.Contains(a) {
			return false
		}
	}
	return true
}

// Equal reports whether two rows have identical mappings.
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for a, v := range r {
		ov, ok := o[a]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of the row (Values are themselves
// immutable, so a shallow copy is a full logical copy).
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for a, v := range r {
		out[a] = v
	}
	return out
}

// Project restricts the row to the attributes in s. s must be a subset of
// the row's scheme; callers are expected to have validated this statically.
func (r Row) Project(s Scheme) Row {
	out := make(Row, len(s))
	for a := range s {
		if v, ok := r[a]; ok {
			out[a] = v
		}
	}
	return out
}

// Rename returns a new row where every key present in renames is replaced
// by its mapped value. renames must be a bijection that creates no
// collision; callers validate this via relation.ValidateRename before
// calling Rename.
func (r Row) Rename(renames map[Attribute]Attribute) Row {
	out := make(Row, len(r))
	for a, v := range r {
		if newA, ok := renames[a]; ok {
			out[newA] = v
		} else {
			out[a] = v
		}
	}
	return out
}

// Merge combines r and o into a single row. Where both contain the same
// attribute, o's value wins only if overwrite is true; keys unique to o
// are always copied in.
func (r Row) Merge(o Row, overwrite bool) Row {
	out := r.Clone()
	for a, v := range o {
		if _, exists := out[a]; !exists || overwrite {
			out[a] = v
		}
	}
	return out
}

// WithUpdates returns a copy of r with every attribute present in updates
// overwritten (update combinator, spec §4.1).
func (r Row) WithUpdates(updates Row) Row {
	return r.Merge(updates, true)
}

// Sorted returns the row's attributes in deterministic order, for stable
// iteration and canonical encoding.
func (r Row) Sorted() []Attribute {
	out := make([]Attribute, 0, len(r))
	for a := range r {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanonicalEncoding returns the deterministic byte encoding of the row:
// its attributes in sorted order, each as a length-prefixed name followed
// by the attribute's canonical value encoding. It is the row's dedup key
// (see Key); plist storage file names hash only the key attributes' bare
// value encodings, not this.
func (r Row) CanonicalEncoding() []byte {
	var out []byte
	for _, a := range r.Sorted() {
		out = append(out, []byte(strconv.Itoa(len(a))+":"+string(a))...)
		out = append(out, r[a].CanonicalEncoding()...)
	}
	return out
}

// Key returns a string form of CanonicalEncoding suitable for use as a Go
// map key.
func (r Row) Key() string {
	return string(r.CanonicalEncoding())
}

// String renders the row for debugging.
func (r Row) String() string {
	out := "{"
	for i, a := range r.Sorted() {
		if i > 0 {
			out += ", "
		}
		out += string(a) + ": " + r[a].String()
	}
	return out + "}"
}
