package types

import "github.com/shopspring/decimal"

type CashFlow struct {
	Date   Date            `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Schedule is the per-ISIN cash-flow input of the payment calendar.
type Schedule struct {
	ISIN          string              `json:"isin"`
	SecID         string              `json:"secid,omitempty"`
	Coupons       []CashFlow          `json:"coupons"`
	Amortizations []CashFlow          `json:"amortizations,omitempty"`
	FaceValue     decimal.NullDecimal `json:"face_value"`
	MaturityDate  *Date               `json:"maturity_date"`
	Status        Status              `json:"status"`
	Error         string              `json:"error,omitempty"`
}

type Position struct {
	ISIN   string          `json:"isin"`
	Amount decimal.Decimal `json:"amount"`
}

type MatrixRow struct {
	ISIN  string                     `json:"isin"`
	Cells map[string]decimal.Decimal `json:"cells"`
}

// DateMatrix is a sparse ISIN x date grid; Dates is ascending ISO strings.
// An absent cell means no cash flow, not zero.
type DateMatrix struct {
	Dates []string    `json:"dates"`
	Rows  []MatrixRow `json:"rows"`
}

func (m DateMatrix) Cell(isin, date string) (decimal.Decimal, bool) {
	for _, r := range m.Rows {
		if r.ISIN == isin {
			v, ok := r.Cells[date]
			return v, ok
		}
	}
	return decimal.Zero, false
}

// Totals sums every row per date.
func (m DateMatrix) Totals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m.Dates))
	for _, r := range m.Rows {
		for d, v := range r.Cells {
			out[d] = out[d].Add(v)
		}
	}
	return out
}

type CalendarResult struct {
	RunID     string     `json:"run_id"`
	Today     Date       `json:"today"`
	Matrix    DateMatrix `json:"matrix"`
	Positions []Position `json:"positions"`
	Invalid   []string   `json:"invalid,omitempty"`
	Failed    []string   `json:"failed,omitempty"`
}
