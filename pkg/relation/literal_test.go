package relation_test

import (
	"context"

	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// literalSource is a fixed, immutable in-memory Source used only by this
// package's tests: a minimal stand-in for a real storage adapter so that
// the combinators can be exercised without pulling in pkg/storage.
type literalSource struct {
	scheme value.Scheme
	rows   relation.RowSet
}

func newLiteral(scheme value.Scheme, rows ...value.Row) *literalSource {
	return &literalSource{scheme: scheme, rows: relation.NewRowSet(rows...)}
}

func (l *literalSource) Scheme() value.Scheme { return l.scheme }

func (l *literalSource) Rows(_ context.Context) (relation.RowSet, error) {
	return l.rows.Clone(), nil
}
