package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// SQLiteAdapter stores one relation as one table in a SQLite database,
// via the pure-Go modernc.org/sqlite driver. Comparison and equality
// selections translate to a parameterized WHERE clause (SelectNative);
// anything that does not fit that shape falls back to scanning every row.
type SQLiteAdapter struct {
	db     *sql.DB
	table  string
	scheme value.Scheme
	attrs  []value.Attribute // stable column order
}

// OpenSQLiteAdapter opens (creating if needed) a table named table in the
// database reachable at dataSourceName, backed by scheme.
func OpenSQLiteAdapter(ctx context.Context, dataSourceName, table string, scheme value.Scheme) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, NewStorageError("sqlite", err)
	}
	a := &SQLiteAdapter{db: db, table: table, scheme: scheme.Clone(), attrs: scheme.Sorted()}
	if err := a.ensureTable(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SQLiteAdapter) ensureTable(ctx context.Context) error {
	cols := make([]string, 0, len(a.attrs))
	for _, at := range a.attrs {
		cols = append(cols, quoteIdent(string(at))+" BLOB")
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))",
		quoteIdent(a.table), strings.Join(cols, ", "), strings.Join(quoteIdents(a.attrs), ", "))
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return NewStorageError("sqlite", err)
	}
	return nil
}

func (a *SQLiteAdapter) Scheme() value.Scheme { return a.scheme.Clone() }

func (a *SQLiteAdapter) Close() error { return a.db.Close() }

func (a *SQLiteAdapter) Rows(ctx context.Context) (relation.RowSet, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoteIdents(a.attrs), ", "), quoteIdent(a.table))
	return a.queryRows(ctx, query)
}

func (a *SQLiteAdapter) queryRows(ctx context.Context, query string, args ...any) (relation.RowSet, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", err)
	}
	defer rows.Close()

	out := make(relation.RowSet)
	for rows.Next() {
		cells := make([]any, len(a.attrs))
		ptrs := make([]any, len(a.attrs))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, NewStorageError("sqlite", err)
		}
		pairs := make(map[value.Attribute]value.Value, len(a.attrs))
		for i, at := range a.attrs {
			pairs[at] = decodeSQLiteCell(cells[i])
		}
		out.Add(value.NewRow(pairs))
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", err)
	}
	return out, nil
}

func (a *SQLiteAdapter) Add(ctx context.Context, row value.Row) (bool, error) {
	if !row.Satisfies(a.scheme) {
		return false, NewSchemeMismatchError(row.Scheme(), a.scheme)
	}
	placeholders := make([]string, len(a.attrs))
	args := make([]any, len(a.attrs))
	for i, at := range a.attrs {
		placeholders[i] = "?"
		args[i] = encodeSQLiteCell(row.Get(at))
	}
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		quoteIdent(a.table), strings.Join(quoteIdents(a.attrs), ", "), strings.Join(placeholders, ", "))
	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, NewStorageError("sqlite", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, NewStorageError("sqlite", err)
	}
	return n > 0, nil
}

func (a *SQLiteAdapter) Delete(ctx context.Context, pred *expr.Expression) (int, error) {
	if where, args, ok := translatePredicate(pred); ok {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(a.table), where)
		res, err := a.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, NewStorageError("sqlite", err)
		}
		n, err := res.RowsAffected()
		return int(n), err
	}
	return a.deleteByScan(ctx, pred)
}

func (a *SQLiteAdapter) deleteByScan(ctx context.Context, pred *expr.Expression) (int, error) {
	rows, err := a.Rows(ctx)
	if err != nil {
		return 0, err
	}
	matches, err := matchingRows(rows, pred)
	if err != nil {
		return 0, err
	}
	for _, row := range matches.Slice() {
		if err := a.deleteExact(ctx, row); err != nil {
			return 0, err
		}
	}
	return matches.Size(), nil
}

func (a *SQLiteAdapter) deleteExact(ctx context.Context, row value.Row) error {
	where := make([]string, len(a.attrs))
	args := make([]any, len(a.attrs))
	for i, at := range a.attrs {
		where[i] = quoteIdent(string(at)) + " = ?"
		args[i] = encodeSQLiteCell(row.Get(at))
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(a.table), strings.Join(where, " AND "))
	_, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return NewStorageError("sqlite", err)
	}
	return nil
}

func (a *SQLiteAdapter) Update(ctx context.Context, pred *expr.Expression, newValues value.Row) (int, error) {
	rows, err := a.Rows(ctx)
	if err != nil {
		return 0, err
	}
	matches, err := matchingRows(rows, pred)
	if err != nil {
		return 0, err
	}
	for _, row := range matches.Slice() {
		if err := a.deleteExact(ctx, row); err != nil {
			return 0, err
		}
		if _, err := a.Add(ctx, row.WithUpdates(newValues)); err != nil {
			return 0, err
		}
	}
	return matches.Size(), nil
}

// SelectNative translates pred into a SQL WHERE clause when it is a
// conjunction of attribute/constant equality or ordering comparisons;
// otherwise it reports ok=false so the caller filters in-memory.
func (a *SQLiteAdapter) SelectNative(ctx context.Context, pred *expr.Expression) (relation.RowSet, bool, error) {
	where, args, ok := translatePredicate(pred)
	if !ok {
		return nil, false, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(quoteIdents(a.attrs), ", "), quoteIdent(a.table), where)
	rows, err := a.queryRows(ctx, query, args...)
	return rows, true, err
}

// translatePredicate recognizes a conjunction of (attr op const) terms.
// Disjunctions, negations and cross-attribute comparisons are left
// unsupported (ok=false) to keep the translation obviously correct.
func translatePredicate(e *expr.Expression) (string, []any, bool) {
	switch e.Op {
	case expr.OpAnd:
		lw, la, lok := translatePredicate(e.Args[0])
		rw, ra, rok := translatePredicate(e.Args[1])
		if !lok || !rok {
			return "", nil, false
		}
		return fmt.Sprintf("(%s) AND (%s)", lw, rw), append(la, ra...), true
	case expr.OpEq, expr.OpNeq, expr.OpLt, expr.OpLeq, expr.OpGt, expr.OpGeq:
		lhs, rhs := e.Args[0], e.Args[1]
		if lhs.Op == expr.OpConst && rhs.Op == expr.OpAttr {
			lhs, rhs = rhs, lhs
			e = flipComparison(e.Op, lhs, rhs)
		}
		if lhs.Op != expr.OpAttr || rhs.Op != expr.OpConst {
			return "", nil, false
		}
		return fmt.Sprintf("%s %s ?", quoteIdent(string(lhs.Attr)), sqlOperator(e.Op)), []any{encodeSQLiteCell(rhs.Const)}, true
	default:
		return "", nil, false
	}
}

func flipComparison(op expr.Op, lhs, rhs *expr.Expression) *expr.Expression {
	switch op {
	case expr.OpLt:
		return expr.Gt(lhs, rhs)
	case expr.OpLeq:
		return expr.Geq(lhs, rhs)
	case expr.OpGt:
		return expr.Lt(lhs, rhs)
	case expr.OpGeq:
		return expr.Leq(lhs, rhs)
	default:
		return &expr.Expression{Op: op, Args: []*expr.Expression{lhs, rhs}}
	}
}

func sqlOperator(op expr.Op) string {
	switch op {
	case expr.OpEq:
		return "="
	case expr.OpNeq:
		return "!="
	case expr.OpLt:
		return "<"
	case expr.OpLeq:
		return "<="
	case expr.OpGt:
		return ">"
	case expr.OpGeq:
		return ">="
	default:
		return "="
	}
}

func quoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func quoteIdents(attrs []value.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = quoteIdent(string(a))
	}
	return out
}

// encodeSQLiteCell maps a Value onto the driver types modernc.org/sqlite
// accepts natively, tagging the kind in a one-byte prefix so blobs and
// text round-trip unambiguously through the generic BLOB column type.
func encodeSQLiteCell(v value.Value) []byte {
	switch v.Kind() {
	case value.Null:
		return nil
	case value.Int:
		i, _ := v.AsInt()
		return append([]byte{'i'}, []byte(fmt.Sprintf("%d", i))...)
	case value.Real:
		return v.CanonicalEncoding()
	case value.TextKind:
		s, _ := v.AsText()
		return append([]byte{'s'}, []byte(s)...)
	case value.BlobKind:
		b, _ := v.AsBlob()
		return append([]byte{'d'}, b...)
	default:
		return nil
	}
}

func decodeSQLiteCell(cell any) value.Value {
	b, ok := cell.([]byte)
	if !ok || len(b) == 0 {
		return value.NullValue()
	}
	switch b[0] {
	case 'i':
		var i int64
		fmt.Sscanf(string(b[1:]), "%d", &i)
		return value.Int64(i)
	case 'r':
		return decodeCanonicalReal(b)
	case 's':
		return value.Text(string(b[1:]))
	case 'd':
		return value.Blob(b[1:])
	default:
		return value.NullValue()
	}
}

func decodeCanonicalReal(b []byte) value.Value {
	if len(b) < 9 {
		return value.Real64(0)
	}
	bits := binary.BigEndian.Uint64(b[1:9])
	return value.Real64(math.Float64frombits(bits))
}
