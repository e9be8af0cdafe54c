package fetcher

import (
	"strings"
	"time"

	"repo-pretrade/internal/types"
)

var dateLayouts = []string{
	types.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
	"2006/01/02",
}

// NormalizeDate parses a date in any layout ISS or spreadsheets produce.
// Empty, placeholder or unparsable values yield nil.
func NormalizeDate(v string) *types.Date {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "0000-00-00", "none", "null", "nan", "nat":
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			d := types.DateOf(t)
			return &d
		}
	}
	return nil
}
