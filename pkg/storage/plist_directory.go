package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// RowPlistDirectoryAdapter stores one XML plist file per row under a
// root directory. A row's filename is the lowercase hex SHA-256 digest
// of the canonical encoding of its primary-key attributes, split into a
// two-character directory prefix so no directory accumulates more than a
// few hundred entries at realistic scale. The primary key, not the full
// row, determines the filename so that updating non-key attributes
// overwrites the existing file in place rather than orphaning it.
type RowPlistDirectoryAdapter struct {
	mu      sync.Mutex
	root    string
	scheme  value.Scheme
	keyAttr value.Scheme
}

// NewRowPlistDirectoryAdapter opens (creating if needed) a row-per-file
// plist store at root, keyed by keyAttrs.
func NewRowPlistDirectoryAdapter(root string, scheme, keyAttrs value.Scheme) (*RowPlistDirectoryAdapter, error) {
	if !keyAttrs.SubsetOf(scheme) {
		return nil, NewStorageError("plist-directory", ErrKeyNotInScheme)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, NewStorageError("plist-directory", err)
	}
	return &RowPlistDirectoryAdapter{root: root, scheme: scheme.Clone(), keyAttr: keyAttrs.Clone()}, nil
}

func (a *RowPlistDirectoryAdapter) Scheme() value.Scheme { return a.scheme.Clone() }

// fileNameFor hashes the bare canonical encoding of the row's primary-key
// value(s) — value.Value.CanonicalEncoding, not value.Row's, which would
// add a length+name header per attribute the bit-exact format does not
// call for.
func (a *RowPlistDirectoryAdapter) fileNameFor(row value.Row) string {
	h := sha256.New()
	for _, attr := range a.keyAttr.Sorted() {
		h.Write(row.Get(attr).CanonicalEncoding())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (a *RowPlistDirectoryAdapter) pathFor(fileName string) string {
	return filepath.Join(a.root, fileName[:2], fileName+".rowplist")
}

func (a *RowPlistDirectoryAdapter) Rows(_ context.Context) (relation.RowSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanRows()
}

func (a *RowPlistDirectoryAdapter) scanRows() (relation.RowSet, error) {
	out := make(relation.RowSet)
	prefixes, err := os.ReadDir(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, NewStorageError("plist-directory", err)
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(a.root, prefix.Name()))
		if err != nil {
			return nil, NewStorageError("plist-directory", err)
		}
		for _, entry := range entries {
			data, err := os.ReadFile(filepath.Join(a.root, prefix.Name(), entry.Name()))
			if err != nil {
				return nil, NewStorageError("plist-directory", err)
			}
			row, err := decodeRowPlist(data)
			if err != nil {
				return nil, NewSerializationError("plist-directory", err)
			}
			out.Add(row)
		}
	}
	return out, nil
}

func (a *RowPlistDirectoryAdapter) Add(_ context.Context, row value.Row) (bool, error) {
	if !row.Satisfies(a.scheme) {
		return false, NewSchemeMismatchError(row.Scheme(), a.scheme)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.pathFor(a.fileNameFor(row))
	if existing, err := os.ReadFile(path); err == nil {
		if old, derr := decodeRowPlist(existing); derr == nil && old.Equal(row) {
			return false, nil
		}
	}
	return true, a.writeRow(row)
}

func (a *RowPlistDirectoryAdapter) writeRow(row value.Row) error {
	fileName := a.fileNameFor(row)
	dir := filepath.Join(a.root, fileName[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewStorageError("plist-directory", err)
	}
	data, err := encodeRowPlist(row)
	if err != nil {
		return NewSerializationError("plist-directory", err)
	}
	if err := os.WriteFile(a.pathFor(fileName), data, 0o644); err != nil {
		return NewStorageError("plist-directory", err)
	}
	return nil
}

func (a *RowPlistDirectoryAdapter) Delete(ctx context.Context, pred *expr.Expression) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.scanRows()
	if err != nil {
		return 0, err
	}
	matches, err := matchingRows(rows, pred)
	if err != nil {
		return 0, err
	}
	for _, row := range matches.Slice() {
		fileName := a.fileNameFor(row)
		if err := os.Remove(a.pathFor(fileName)); err != nil && !os.IsNotExist(err) {
			return 0, NewStorageError("plist-directory", err)
		}
	}
	return matches.Size(), nil
}

func (a *RowPlistDirectoryAdapter) Update(ctx context.Context, pred *expr.Expression, newValues value.Row) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.scanRows()
	if err != nil {
		return 0, err
	}
	matches, err := matchingRows(rows, pred)
	if err != nil {
		return 0, err
	}
	for _, row := range matches.Slice() {
		updated := row.WithUpdates(newValues)
		if !updated.Project(a.keyAttr).Equal(row.Project(a.keyAttr)) {
			if err := os.Remove(a.pathFor(a.fileNameFor(row))); err != nil && !os.IsNotExist(err) {
				return 0, NewStorageError("plist-directory", err)
			}
		}
		if err := a.writeRow(updated); err != nil {
			return 0, err
		}
	}
	return matches.Size(), nil
}
