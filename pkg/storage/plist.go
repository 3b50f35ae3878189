package storage

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/l7mp/reldb/pkg/value"
)

// No plist library appears anywhere in the retrieval pack, so the XML
// plist codec is hand-rolled over the standard library's encoding/xml,
// modeled on Apple's property-list DTD closely enough to round-trip the
// five Value kinds this engine needs (see DESIGN.md). A plist dict here
// is always a flat sequence of <key>name</key><type>content</type>
// pairs; nested collections are not needed by this engine and are not
// supported.

const plistHeader = `<?xml version="1.0" encoding="UTF-8"?>` +
	"\n" + `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n"

// encodeRowPlist renders row as a standalone XML plist document: a
// top-level <dict> mapping each attribute name to a typed plist element.
func encodeRowPlist(row value.Row) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(`<plist version="1.0"><dict>`)
	for _, a := range row.Sorted() {
		body.WriteString("<key>" + xmlEscape(string(a)) + "</key>")
		elem, err := encodeValueElement(row.Get(a))
		if err != nil {
			return nil, err
		}
		body.Write(elem)
	}
	body.WriteString(`</dict></plist>`)
	return append([]byte(plistHeader), body.Bytes()...), nil
}

// decodeRowPlist parses a document written by encodeRowPlist back into a Row.
func decodeRowPlist(data []byte) (value.Row, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	pairs := map[value.Attribute]value.Value{}
	var pendingKey string
	haveKey := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed plist: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "key" {
			s, err := readCharData(dec)
			if err != nil {
				return nil, err
			}
			pendingKey, haveKey = s, true
			continue
		}
		v, isValueElem, err := decodeValueElement(dec, start.Name.Local)
		if err != nil {
			return nil, err
		}
		if isValueElem && haveKey {
			pairs[value.NewAttribute(pendingKey)] = v
			haveKey = false
		}
	}
	return value.NewRow(pairs), nil
}

func readCharData(dec *xml.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	cd, ok := tok.(xml.CharData)
	if !ok {
		return "", nil
	}
	return string(cd), nil
}

func decodeValueElement(dec *xml.Decoder, tag string) (value.Value, bool, error) {
	switch tag {
	case "integer":
		s, err := readCharData(dec)
		if err != nil {
			return value.Value{}, false, err
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return value.Value{}, false, fmt.Errorf("malformed plist integer %q: %w", s, err)
		}
		return value.Int64(i), true, nil
	case "real":
		s, err := readCharData(dec)
		if err != nil {
			return value.Value{}, false, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Value{}, false, fmt.Errorf("malformed plist real %q: %w", s, err)
		}
		return value.Real64(f), true, nil
	case "string":
		s, err := readCharData(dec)
		if err != nil {
			return value.Value{}, false, err
		}
		return value.Text(s), true, nil
	case "data":
		s, err := readCharData(dec)
		if err != nil {
			return value.Value{}, false, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return value.Value{}, false, fmt.Errorf("malformed plist data: %w", err)
		}
		return value.Blob(b), true, nil
	case "null":
		return value.NullValue(), true, nil
	default:
		return value.Value{}, false, nil
	}
}

func encodeValueElement(v value.Value) ([]byte, error) {
	switch v.Kind() {
	case value.Null:
		return []byte("<null/>"), nil
	case value.Int:
		i, _ := v.AsInt()
		return []byte(fmt.Sprintf("<integer>%d</integer>", i)), nil
	case value.Real:
		r, _ := v.AsReal()
		return []byte(fmt.Sprintf("<real>%s</real>", strconv.FormatFloat(r, 'g', -1, 64))), nil
	case value.TextKind:
		s, _ := v.AsText()
		return []byte("<string>" + xmlEscape(s) + "</string>"), nil
	case value.BlobKind:
		b, _ := v.AsBlob()
		return []byte("<data>" + base64.StdEncoding.EncodeToString(b) + "</data>"), nil
	default:
		return nil, fmt.Errorf("cannot encode value of kind %s into a plist", v.Kind())
	}
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
