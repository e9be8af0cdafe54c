package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"repo-pretrade/internal/isin"
)

// readInput returns the raw text of path, or of stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf")), nil
}

// identifiersFromFile extracts candidate identifiers from a table or plain
// text file. A column headed ISIN wins; otherwise the one column whose
// cells look like identifiers is used; otherwise the whole file is split
// as free text.
func identifiersFromFile(path string) ([]string, error) {
	body, err := readInput(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" || ext == ".xls" {
		return nil, fmt.Errorf("%s: spreadsheet input is not supported, export it as CSV", path)
	}
	if ids, ok := identifiersFromTable(body); ok {
		return ids, nil
	}
	return isin.Split(string(body)), nil
}

func sniffDelimiter(firstLine string) rune {
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(firstLine, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func identifiersFromTable(body []byte) ([]string, bool) {
	first, _, _ := strings.Cut(string(body), "\n")
	delim := sniffDelimiter(first)
	if !strings.ContainsRune(first, delim) {
		return nil, false
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil || len(rows) == 0 {
		return nil, false
	}

	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "ISIN") {
			col = i
			break
		}
	}
	data := rows[1:]
	if col < 0 {
		if col = likelyISINColumn(rows); col < 0 {
			return nil, false
		}
		if col < len(rows[0]) && isin.IsWellFormed(isin.Normalize(rows[0][col])) {
			data = rows
		}
	}

	var ids []string
	for _, row := range data {
		if col < len(row) {
			if v := strings.TrimSpace(row[col]); v != "" {
				ids = append(ids, v)
			}
		}
	}
	return ids, true
}

// likelyISINColumn returns the only column containing well-formed
// identifiers, or -1 when none or several do.
func likelyISINColumn(rows [][]string) int {
	hits := map[int]int{}
	for _, row := range rows {
		for i, cell := range row {
			if isin.IsWellFormed(isin.Normalize(cell)) {
				hits[i]++
			}
		}
	}
	if len(hits) != 1 {
		return -1
	}
	for i := range hits {
		return i
	}
	return -1
}
