package fetcher

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"repo-pretrade/internal/iss"
	"repo-pretrade/internal/types"
)

// NextCoupon is what the record needs from a coupon schedule.
type NextCoupon struct {
	CouponDate *types.Date
	RecordDate *types.Date
	Value      decimal.NullDecimal
	ValueRub   decimal.NullDecimal
	ValuePct   decimal.NullDecimal
	Currency   string
}

// earliestOnOrAfter scans the given columns for the earliest parseable date
// not before today.
func earliestOnOrAfter(rows []types.Attrs, cols []string, today types.Date) *types.Date {
	var best *types.Date
	for _, row := range rows {
		for _, c := range cols {
			d := NormalizeDate(row[c])
			if d == nil || d.Before(today) {
				continue
			}
			if best == nil || d.Before(*best) {
				best = d
			}
		}
	}
	return best
}

// PickNextCoupon locates the next coupon and record dates in a schedule
// table and reads the amounts from the row of the chosen coupon date.
// When no column looks like a coupon date, every column is scanned as a
// last resort.
func PickNextCoupon(t iss.Table, rules []Rule, today types.Date) NextCoupon {
	var out NextCoupon
	if t.Empty() {
		return out
	}
	rows := t.Rows()
	cols := t.UpperColumns()
	cm := MatchColumns(cols, rules)

	couponCols := cm[FieldCouponDate]
	if len(couponCols) == 0 {
		couponCols = cols
	}
	out.CouponDate = earliestOnOrAfter(rows, couponCols, today)
	out.RecordDate = earliestOnOrAfter(rows, cm[FieldRecordDate], today)

	var chosen types.Attrs
	if out.CouponDate != nil {
		chosen = rowWithDate(rows, couponCols, *out.CouponDate)
	}
	if chosen != nil {
		out.Value = types.ParseNullDecimal(chosen[cm.First(FieldValue)])
		out.ValueRub = types.ParseNullDecimal(chosen[cm.First(FieldValueRub)])
		out.ValuePct = types.ParseNullDecimal(chosen[cm.First(FieldValuePct)])
		out.Currency = firstNonEmpty(chosen, cm[FieldFaceUnit])
	}
	if out.Currency == "" {
		for _, row := range rows {
			if out.Currency = firstNonEmpty(row, cm[FieldFaceUnit]); out.Currency != "" {
				break
			}
		}
	}
	return out
}

func rowWithDate(rows []types.Attrs, cols []string, date types.Date) types.Attrs {
	for _, row := range rows {
		for _, c := range cols {
			if d := NormalizeDate(row[c]); d != nil && d.Equal(date) {
				return row
			}
		}
	}
	return nil
}

func firstNonEmpty(row types.Attrs, cols []string) string {
	for _, c := range cols {
		if v := strings.TrimSpace(row[c]); v != "" {
			return v
		}
	}
	return ""
}

// CashFlows converts a schedule table into dated amounts: the date is the
// first parseable value among dateField columns (else any *DATE column),
// the amount prefers the base-currency column. A later row on the same
// date replaces an earlier one.
func CashFlows(t iss.Table, rules []Rule, dateField Field) []types.CashFlow {
	if t.Empty() {
		return nil
	}
	cols := t.UpperColumns()
	cm := MatchColumns(cols, rules)

	dateCols := cm[dateField]
	if len(dateCols) == 0 {
		for _, c := range cols {
			if strings.HasSuffix(c, "DATE") {
				dateCols = append(dateCols, c)
			}
		}
	}
	valueCol := cm.First(FieldValueRub)
	if !strings.Contains(valueCol, "VALUE_RUB") {
		valueCol = ""
	}
	if valueCol == "" {
		valueCol = cm.First(FieldValue)
	}
	if len(dateCols) == 0 || valueCol == "" {
		return nil
	}

	byDate := map[string]types.CashFlow{}
	for _, row := range t.Rows() {
		var date *types.Date
		for _, c := range dateCols {
			if date = NormalizeDate(row[c]); date != nil {
				break
			}
		}
		if date == nil {
			continue
		}
		amount, ok := types.ParseDecimal(row[valueCol])
		if !ok {
			continue
		}
		byDate[date.String()] = types.CashFlow{Date: *date, Amount: amount}
	}

	out := make([]types.CashFlow, 0, len(byDate))
	for _, cf := range byDate {
		out = append(out, cf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
