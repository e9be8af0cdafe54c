package fetcher

import (
	"regexp"
	"strings"
)

// Field is a canonical schedule column.
type Field string

const (
	FieldCouponDate Field = "coupon_date"
	FieldRecordDate Field = "record_date"
	FieldValue      Field = "value"
	FieldValueRub   Field = "value_rub"
	FieldValuePct   Field = "value_pct"
	FieldFaceUnit   Field = "face_unit"
	FieldAmortDate  Field = "amort_date"
)

// Matcher selects columns by exact name, by containing every listed
// substring, or by pattern. Names are compared upper-cased.
type Matcher struct {
	Exact   []string
	AllOf   []string
	Pattern *regexp.Regexp
}

func (m Matcher) match(col string) bool {
	for _, e := range m.Exact {
		if col == e {
			return true
		}
	}
	if len(m.AllOf) > 0 {
		for _, s := range m.AllOf {
			if !strings.Contains(col, s) {
				return false
			}
		}
		return true
	}
	return m.Pattern != nil && m.Pattern.MatchString(col)
}

// Rule maps a canonical field to matchers tried in priority order.
type Rule struct {
	Field    Field
	Matchers []Matcher
}

// DefaultColumnRules covers the column spellings seen across instrument
// classes and ISS versions. Extend here rather than in control flow.
var DefaultColumnRules = []Rule{
	{Field: FieldCouponDate, Matchers: []Matcher{{AllOf: []string{"COUPON", "DATE"}}}},
	{Field: FieldRecordDate, Matchers: []Matcher{{AllOf: []string{"RECORD", "DATE"}}}},
	{Field: FieldValue, Matchers: []Matcher{
		{Exact: []string{"VALUE", "VALUE_COUPON", "COUPONVALUE"}},
		{Pattern: regexp.MustCompile(`(?i)^VALUE$`)},
	}},
	{Field: FieldValueRub, Matchers: []Matcher{
		{AllOf: []string{"VALUE_RUB"}},
		{AllOf: []string{"RUB"}},
	}},
	{Field: FieldValuePct, Matchers: []Matcher{
		{Exact: []string{"VALUEPRC", "VALUE_PRC", "VALUE%"}},
		{Pattern: regexp.MustCompile(`PRC|PERC|%|PERCENT`)},
	}},
	{Field: FieldFaceUnit, Matchers: []Matcher{
		{Exact: []string{"FACEUNIT", "FACEUNIT_S"}},
		{AllOf: []string{"FACEUNIT"}},
	}},
	{Field: FieldAmortDate, Matchers: []Matcher{
		{AllOf: []string{"AMORT", "DATE"}},
	}},
}

// ColumnMap lists, per field, the matching columns in priority order.
type ColumnMap map[Field][]string

// MatchColumns applies rules once to a table's upper-cased column names.
func MatchColumns(cols []string, rules []Rule) ColumnMap {
	out := ColumnMap{}
	for _, rule := range rules {
		seen := map[string]bool{}
		for _, m := range rule.Matchers {
			for _, c := range cols {
				if !seen[c] && m.match(c) {
					seen[c] = true
					out[rule.Field] = append(out[rule.Field], c)
				}
			}
		}
	}
	return out
}

// First returns the best column for f, or "".
func (m ColumnMap) First(f Field) string {
	if cols := m[f]; len(cols) > 0 {
		return cols[0]
	}
	return ""
}
