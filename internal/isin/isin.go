// Package isin validates ISO 6166 security identifiers.
package isin

import (
	"regexp"
	"strings"
)

const Length = 12

var pattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// IsWellFormed reports whether s has the fixed ISIN shape: two letters,
// nine alphanumerics and a trailing digit. Lowercase input is rejected.
func IsWellFormed(s string) bool {
	return len(s) == Length && pattern.MatchString(s)
}

// IsChecksumValid reports whether the trailing check digit of a well-formed
// identifier is correct. Letters expand to two digits (A=10 ... Z=35) and the
// resulting digit string is Luhn-checked right to left, check digit included.
func IsChecksumValid(s string) bool {
	if !IsWellFormed(s) {
		return false
	}
	digits := make([]byte, 0, 2*Length)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c-'0')
		case c >= 'A' && c <= 'Z':
			v := c - 'A' + 10
			digits = append(digits, v/10, v%10)
		default:
			return false
		}
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i])
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Valid is IsWellFormed && IsChecksumValid.
func Valid(s string) bool {
	return IsChecksumValid(s)
}

func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Split breaks free text into candidate identifiers on whitespace, commas
// and semicolons.
func Split(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n', '\r', '\u00a0':
			return true
		}
		return false
	})
}

// Report is the outcome of validating a raw identifier list.
type Report struct {
	Valid       []string
	Malformed   []string
	BadChecksum []string
	Duplicates  int
}

// Partition normalizes each candidate and sorts it into the report. Valid
// identifiers are deduplicated keeping first-seen order.
func Partition(raw []string) Report {
	var rep Report
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		id := Normalize(r)
		if id == "" {
			continue
		}
		switch {
		case !IsWellFormed(id):
			rep.Malformed = append(rep.Malformed, id)
		case !IsChecksumValid(id):
			rep.BadChecksum = append(rep.BadChecksum, id)
		default:
			if _, dup := seen[id]; dup {
				rep.Duplicates++
				continue
			}
			seen[id] = struct{}{}
			rep.Valid = append(rep.Valid, id)
		}
	}
	return rep
}

// Rejected returns malformed and bad-checksum identifiers together.
func (r Report) Rejected() []string {
	out := make([]string, 0, len(r.Malformed)+len(r.BadChecksum))
	out = append(out, r.Malformed...)
	return append(out, r.BadChecksum...)
}
