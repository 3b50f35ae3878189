// Package value implements the tagged-variant cell values, interned
// attribute names, ordered-attribute rows, and attribute sets (schemes)
// that the relational algebra layer is built on.
//
// Value is deliberately a small closed sum type (null, integer, real,
// text, blob, notFound) rather than an open interface: the differentiator
// and the storage adapters both need to pattern-match on the concrete
// variant, and a closed set keeps that matching exhaustive.
package value

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	Null Kind = iota
	Int
	Real
	TextKind
	BlobKind
	// NotFound is the sentinel returned for a missing attribute lookup. It
	// is never stored in a Row.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Int:
		return "integer"
	case Real:
		return "real"
	case TextKind:
		return "text"
	case BlobKind:
		return "blob"
	case NotFound:
		return "notFound"
	default:
		return "<unknown>"
	}
}

// Value is a tagged union over {null, integer, real, text, blob, notFound}.
// The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	r    float64
	s    string
	b    []byte
}

// NullValue returns the null value.
func NullValue() Value { return Value{kind: Null} }

// Int64 wraps a 64-bit signed integer. Booleans are represented as Int(0)/Int(1).
func Int64(v int64) Value { return Value{kind: Int, i: v} }

// Bool wraps a boolean as Int(0)/Int(1), per the data model.
func Bool(v bool) Value {
	if v {
		return Int64(1)
	}
	return Int64(0)
}

// Real64 wraps an IEEE-754 double.
func Real64(v float64) Value { return Value{kind: Real, r: v} }

// Text wraps a UTF-8 string.
func Text(v string) Value { return Value{kind: TextKind, s: v} }

// Blob wraps a byte sequence. The slice is not copied; callers must treat
// it as immutable once wrapped.
func Blob(v []byte) Value { return Value{kind: BlobKind, b: v} }

// NotFoundValue is the sentinel for a missing attribute. It is never
// stored in a Row.
func NotFoundValue() Value { return Value{kind: NotFound} }

// Kind reports which variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNotFound reports whether v is the notFound sentinel.
func (v Value) IsNotFound() bool { return v.kind == NotFound }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == Null }

// AsInt returns the wrapped integer and true if v is an Int.
func (v Value) AsInt() (int64, bool) {
	if v.kind != Int {
		return 0, false
	}
	return v.i, true
}

// AsReal returns the wrapped real and true if v is a Real.
func (v Value) AsReal() (float64, bool) {
	if v.kind != Real {
		return 0, false
	}
	return v.r, true
}

// AsText returns the wrapped string and true if v is Text.
func (v Value) AsText() (string, bool) {
	if v.kind != TextKind {
		return "", false
	}
	return v.s, true
}

// AsBlob returns the wrapped bytes and true if v is a Blob.
func (v Value) AsBlob() ([]byte, bool) {
	if v.kind != BlobKind {
		return nil, false
	}
	return v.b, true
}

// Truthy reports whether v is interpretable as boolean-true, i.e. an
// integer not equal to zero. Non-integer values are never truthy.
func (v Value) Truthy() bool {
	return v.kind == Int && v.i != 0
}

// Equal reports whether two values have the same tag and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null, NotFound:
		return true
	case Int:
		return v.i == o.i
	case Real:
		return v.r == o.r
	case TextKind:
		return v.s == o.s
	case BlobKind:
		return bytes.Equal(v.b, o.b)
	default:
		return false
	}
}

// kindOrder defines the total order over tags: null < integer < real <
// text < blob. notFound never participates in comparisons between stored
// values but is ordered last so that a defensive Compare call on it is
// still well-defined.
func kindOrder(k Kind) int {
	switch k {
	case Null:
		return 0
	case Int:
		return 1
	case Real:
		return 2
	case TextKind:
		return 3
	case BlobKind:
		return 4
	default:
		return 5
	}
}

// Compare implements the total order of spec §3: null < integer < real <
// text < blob, with lexicographic ordering by scalar within each of the
// scalar kinds and byte-wise ordering for blobs. Returns <0, 0, >0.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return kindOrder(a.kind) - kindOrder(b.kind)
	}
	switch a.kind {
	case Null, NotFound:
		return 0
	case Int:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		default:
			return 0
		}
	case Real:
		switch {
		case a.r < b.r:
			return -1
		case a.r > b.r:
			return 1
		default:
			return 0
		}
	case TextKind:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	case BlobKind:
		return bytes.Compare(a.b, b.b)
	default:
		return 0
	}
}

// CanonicalEncoding returns the tagged byte encoding of v used both as a
// stable multiset/dedup key and, concatenated across a row's primary-key
// attributes, as the content hashed into a plist storage file name: null encodes as
// "n", an integer as "i"+decimal, a real as "r"+8-byte big-endian IEEE-754
// bits, text as "s"+its NFD-normalized form, and a blob as "d"+its raw
// bytes.
func (v Value) CanonicalEncoding() []byte {
	switch v.kind {
	case Null:
		return []byte{'n'}
	case Int:
		return []byte(fmt.Sprintf("i%d", v.i))
	case Real:
		buf := make([]byte, 9)
		buf[0] = 'r'
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.r))
		return buf
	case TextKind:
		return append([]byte{'s'}, norm.NFD.String(v.s)...)
	case BlobKind:
		return append([]byte{'d'}, v.b...)
	default:
		return []byte{'?'}
	}
}

// String renders a Value for debugging and log lines.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Real:
		return fmt.Sprintf("%g", v.r)
	case TextKind:
		return fmt.Sprintf("%q", v.s)
	case BlobKind:
		return fmt.Sprintf("blob(%d bytes)", len(v.b))
	case NotFound:
		return "<notFound>"
	default:
		return "<invalid value>"
	}
}
