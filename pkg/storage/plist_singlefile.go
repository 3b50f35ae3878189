package storage

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/l7mp/reldb/pkg/expr"
	"github.com/l7mp/reldb/pkg/relation"
	"github.com/l7mp/reldb/pkg/value"
)

// SingleFilePlistAdapter serializes an entire relation's rows, as an array
// of row dicts, into one XML plist document at a caller-supplied path. The
// scheme is not written to the document; the adapter uses the scheme
// passed to OpenSingleFilePlistAdapter. Every
// mutation reads, modifies, and rewrites the whole file; this is the
// simple adapter for small, rarely-written relations, as opposed to
// RowPlistDirectoryAdapter's one-file-per-row design for large ones.
type SingleFilePlistAdapter struct {
	mu     sync.Mutex
	path   string
	scheme value.Scheme
}

// OpenSingleFilePlistAdapter opens (creating if absent) the plist
// document at path, over scheme.
func OpenSingleFilePlistAdapter(path string, scheme value.Scheme) (*SingleFilePlistAdapter, error) {
	a := &SingleFilePlistAdapter{path: path, scheme: scheme.Clone()}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := a.writeRows(relation.NewRowSet()); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *SingleFilePlistAdapter) Scheme() value.Scheme { return a.scheme.Clone() }

func (a *SingleFilePlistAdapter) readRows() (relation.RowSet, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, NewStorageError("plist-singlefile", err)
	}
	rows, err := decodeRowArrayPlist(data)
	if err != nil {
		return nil, NewSerializationError("plist-singlefile", err)
	}
	return rows, nil
}

func (a *SingleFilePlistAdapter) writeRows(rows relation.RowSet) error {
	data, err := encodeRowArrayPlist(rows)
	if err != nil {
		return NewSerializationError("plist-singlefile", err)
	}
	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		return NewStorageError("plist-singlefile", err)
	}
	return nil
}

func (a *SingleFilePlistAdapter) Rows(_ context.Context) (relation.RowSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readRows()
}

func (a *SingleFilePlistAdapter) Add(_ context.Context, row value.Row) (bool, error) {
	if !row.Satisfies(a.scheme) {
		return false, NewSchemeMismatchError(row.Scheme(), a.scheme)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.readRows()
	if err != nil {
		return false, err
	}
	if rows.Contains(row) {
		return false, nil
	}
	rows.Add(row)
	return true, a.writeRows(rows)
}

func (a *SingleFilePlistAdapter) Delete(_ context.Context, pred *expr.Expression) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.readRows()
	if err != nil {
		return 0, err
	}
	matches, err := matchingRows(rows, pred)
	if err != nil {
		return 0, err
	}
	for _, row := range matches.Slice() {
		rows.Remove(row)
	}
	return matches.Size(), a.writeRows(rows)
}

func (a *SingleFilePlistAdapter) Update(_ context.Context, pred *expr.Expression, newValues value.Row) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.readRows()
	if err != nil {
		return 0, err
	}
	matches, err := matchingRows(rows, pred)
	if err != nil {
		return 0, err
	}
	for _, row := range matches.Slice() {
		rows.Remove(row)
		rows.Add(row.WithUpdates(newValues))
	}
	return matches.Size(), a.writeRows(rows)
}

func encodeRowArrayPlist(rows relation.RowSet) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(`<plist version="1.0"><array>`)
	for _, row := range rows.Slice() {
		body.WriteString("<dict>")
		for _, a := range row.Sorted() {
			body.WriteString("<key>" + xmlEscape(string(a)) + "</key>")
			elem, err := encodeValueElement(row.Get(a))
			if err != nil {
				return nil, err
			}
			body.Write(elem)
		}
		body.WriteString("</dict>")
	}
	body.WriteString(`</array></plist>`)
	return append([]byte(plistHeader), body.Bytes()...), nil
}

func decodeRowArrayPlist(data []byte) (relation.RowSet, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	out := make(relation.RowSet)

	var pairs map[value.Attribute]value.Value
	var pendingKey string
	haveKey := false
	inDict := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed plist: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "dict":
				inDict = true
				pairs = map[value.Attribute]value.Value{}
			case "key":
				if !inDict {
					continue
				}
				s, err := readCharData(dec)
				if err != nil {
					return nil, err
				}
				pendingKey, haveKey = s, true
			default:
				if !inDict {
					continue
				}
				v, isValueElem, err := decodeValueElement(dec, t.Name.Local)
				if err != nil {
					return nil, err
				}
				if isValueElem && haveKey {
					pairs[value.NewAttribute(pendingKey)] = v
					haveKey = false
				}
			}
		case xml.EndElement:
			if t.Name.Local == "dict" && inDict {
				out.Add(value.NewRow(pairs))
				inDict = false
			}
		}
	}
	return out, nil
}
