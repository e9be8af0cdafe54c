package types

import "strings"

// Attrs is a flat attribute bag keyed by upper-cased field name.
type Attrs map[string]string

// Set stores v under the upper-cased key.
func (a Attrs) Set(key, v string) {
	a[strings.ToUpper(strings.TrimSpace(key))] = v
}

// First returns the first non-empty value among the given keys.
func (a Attrs) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(a[strings.ToUpper(k)]); v != "" {
			return v
		}
	}
	return ""
}

// FirstPrefix returns the first non-empty value whose key starts with prefix,
// preferring the exact key.
func (a Attrs) FirstPrefix(prefix string) string {
	prefix = strings.ToUpper(prefix)
	if v := a.First(prefix); v != "" {
		return v
	}
	best := ""
	for k, v := range a {
		if strings.HasPrefix(k, prefix) && strings.TrimSpace(v) != "" {
			if best == "" || k < best {
				best = k
			}
		}
	}
	if best == "" {
		return ""
	}
	return strings.TrimSpace(a[best])
}

// BoardSnapshot maps ISIN to the row a trading board lists for it.
type BoardSnapshot struct {
	Board string
	Rows  map[string]Attrs
}

func (s BoardSnapshot) Lookup(isin string) (Attrs, bool) {
	row, ok := s.Rows[isin]
	return row, ok
}
