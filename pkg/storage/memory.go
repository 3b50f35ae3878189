package storage

import (
	"context"
	"sync"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// MemoryAdapter is the reference Adapter: a mutex-guarded RowSet with no
// backing store, used as the baseline other adapters are tested against
// and as the default storage for derived materializations.
type MemoryAdapter struct {
	mu     sync.RWMutex
	scheme value.Scheme
	rows   relation.RowSet
}

// NewMemoryAdapter creates an empty adapter over scheme.
func NewMemoryAdapter(scheme value.Scheme) *MemoryAdapter {
	return &MemoryAdapter{scheme: scheme.Clone(), rows: make(relation.RowSet)}
}

func (m *MemoryAdapter) Scheme() value.Scheme { return m.scheme.Clone() }

func (m *MemoryAdapter) Rows(_ context.Context) (relation.RowSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows.Clone(), nil
}

func (m *MemoryAdapter) Add(_ context.Context, row value.Row) (bool, error) {
	if !row.Satisfies(m.scheme) {
		return false, NewSchemeMismatchError(row.Scheme(), m.scheme)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows.Contains(row) {
		return false, nil
	}
	m.rows.Add(row)
	return true, nil
}

func (m *MemoryAdapter) Delete(_ context.Context, pred *expr.Expression) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows.Slice() {
		ok, err := pred.Test(expr.EvalCtx{Object: row})
		if err != nil {
			return n, err
		}
		if ok {
			m.rows.Remove(row)
			n++
		}
	}
	return n, nil
}

func (m *MemoryAdapter) Update(_ context.Context, pred *expr.Expression, newValues value.Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows.Slice() {
		ok, err := pred.Test(expr.EvalCtx{Object: row})
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		m.rows.Remove(row)
		m.rows.Add(row.WithUpdates(newValues))
		n++
	}
	return n, nil
}
