// Package iss talks to the exchange's Informational & Statistical Server:
// tabular JSON blocks, attribute-list XML and per-board snapshots.
package iss

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"repo-pretrade/internal/types"
)

var (
	ErrNotFound   = errors.New("security not found")
	ErrEmptyTable = errors.New("empty table")
)

// Table is one ISS data block: column names plus positional rows.
type Table struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

func (t Table) Empty() bool {
	return len(t.Columns) == 0 || len(t.Data) == 0
}

// Rows converts positional rows into attribute bags keyed by upper-cased
// column name. Nulls become empty strings.
func (t Table) Rows() []types.Attrs {
	out := make([]types.Attrs, 0, len(t.Data))
	for _, row := range t.Data {
		attrs := make(types.Attrs, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				attrs.Set(col, cellString(row[i]))
			}
		}
		out = append(out, attrs)
	}
	return out
}

// First returns the first row, which ISS orders deterministically.
func (t Table) First() (types.Attrs, error) {
	if t.Empty() {
		return nil, ErrEmptyTable
	}
	return t.Rows()[0], nil
}

// UpperColumns returns the column names upper-cased, in table order.
func (t Table) UpperColumns() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = strings.ToUpper(strings.TrimSpace(c))
	}
	return out
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Document is a decoded ISS JSON response: block name to table.
type Document map[string]Table

// Block returns the named block, matching case-insensitively.
func (d Document) Block(name string) Table {
	if t, ok := d[name]; ok {
		return t
	}
	for k, t := range d {
		if strings.EqualFold(k, name) {
			return t
		}
	}
	return Table{}
}

// DecodeDocument parses an ISS JSON body. Blocks that are not tables are
// skipped rather than failing the whole document.
func DecodeDocument(body []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode ISS document: %w", err)
	}
	doc := make(Document, len(raw))
	for name, msg := range raw {
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		var t Table
		if err := dec.Decode(&t); err != nil {
			continue
		}
		doc[name] = t
	}
	return doc, nil
}

// DescriptionAttrs folds a name/value description block into one bag.
func DescriptionAttrs(t Table) types.Attrs {
	attrs := types.Attrs{}
	for _, row := range t.Rows() {
		name := row.First("NAME")
		if name == "" {
			continue
		}
		attrs.Set(name, row["VALUE"])
	}
	return attrs
}
