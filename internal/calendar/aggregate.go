package calendar

import (
	"sort"

	"github.com/shopspring/decimal"

	"repo-pretrade/internal/types"
)

// Aggregate scales each schedule's future cash flows by the position size
// and buckets them by date. Principal comes from the amortization
// schedule when there is one, otherwise face value is paid at maturity.
// Only dates on or after today appear. Every position with a successful
// schedule gets a row, empty when nothing is left to pay; positions
// without one are skipped.
func Aggregate(schedules []types.Schedule, positions []types.Position, today types.Date) types.DateMatrix {
	byISIN := make(map[string]types.Schedule, len(schedules))
	for _, s := range schedules {
		byISIN[s.ISIN] = s
	}

	var m types.DateMatrix
	dates := map[string]struct{}{}
	for _, p := range positions {
		s, ok := byISIN[p.ISIN]
		if !ok || s.Status != types.StatusSuccess {
			continue
		}
		cells := map[string]decimal.Decimal{}
		add := func(d types.Date, amount decimal.Decimal) {
			if d.Before(today) {
				return
			}
			key := d.String()
			cells[key] = cells[key].Add(amount.Mul(p.Amount))
			dates[key] = struct{}{}
		}

		for _, cf := range s.Coupons {
			add(cf.Date, cf.Amount)
		}
		if len(s.Amortizations) > 0 {
			for _, cf := range s.Amortizations {
				add(cf.Date, cf.Amount)
			}
		} else if s.FaceValue.Valid && s.MaturityDate != nil {
			add(*s.MaturityDate, s.FaceValue.Decimal)
		}

		m.Rows = append(m.Rows, types.MatrixRow{ISIN: p.ISIN, Cells: cells})
	}

	m.Dates = make([]string, 0, len(dates))
	for d := range dates {
		m.Dates = append(m.Dates, d)
	}
	sort.Strings(m.Dates)
	return m
}
