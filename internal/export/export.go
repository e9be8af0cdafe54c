// Package export renders batch and calendar results as CSV, JSON or an
// aligned text table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"repo-pretrade/internal/types"
)

type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// BondRow is the flat tabular projection of a BondRecord.
type BondRow struct {
	ISIN           string `csv:"isin" json:"isin"`
	IssuerCode     string `csv:"issuer_code" json:"issuer_code"`
	IssuerName     string `csv:"issuer_name" json:"issuer_name"`
	Name           string `csv:"name" json:"name"`
	MaturityDate   string `csv:"maturity_date" json:"maturity_date"`
	PutDate        string `csv:"put_date" json:"put_date"`
	CallDate       string `csv:"call_date" json:"call_date"`
	RecordDate     string `csv:"record_date" json:"record_date"`
	CouponDate     string `csv:"coupon_date" json:"coupon_date"`
	CouponCurrency string `csv:"coupon_currency" json:"coupon_currency"`
	CouponValue    string `csv:"coupon_value" json:"coupon_value"`
	CouponValueRub string `csv:"coupon_value_rub" json:"coupon_value_rub"`
	CouponValuePct string `csv:"coupon_value_pct" json:"coupon_value_pct"`
	InWindow       bool   `csv:"in_window" json:"in_window"`
	Status         string `csv:"status" json:"status"`
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func Rows(records []types.BondRecord) []*BondRow {
	out := make([]*BondRow, 0, len(records))
	for _, r := range records {
		out = append(out, &BondRow{
			ISIN:           r.ISIN,
			IssuerCode:     r.IssuerCode,
			IssuerName:     r.IssuerName,
			Name:           r.Name,
			MaturityDate:   types.FormatDate(r.MaturityDate),
			PutDate:        types.FormatDate(r.PutDate),
			CallDate:       types.FormatDate(r.CallDate),
			RecordDate:     types.FormatDate(r.RecordDate),
			CouponDate:     types.FormatDate(r.CouponDate),
			CouponCurrency: r.CouponCurrency,
			CouponValue:    nullString(r.CouponValue),
			CouponValueRub: nullString(r.CouponValueRub),
			CouponValuePct: nullString(r.CouponValuePct),
			InWindow:       r.InWindow,
			Status:         string(r.Status),
		})
	}
	return out
}

// Records writes the batch records. When onlyFlagged is set only in-window
// records are written.
func Records(w io.Writer, f Format, res *types.BatchResult, onlyFlagged bool) error {
	records := res.Records
	if onlyFlagged {
		records = res.FlaggedRecords()
	}
	rows := Rows(records)
	switch f {
	case FormatCSV:
		return gocsv.Marshal(rows, w)
	case FormatJSON:
		out := *res
		out.Records = records
		return writeJSON(w, &out)
	default:
		return recordTable(w, rows)
	}
}

func recordTable(w io.Writer, rows []*BondRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ISIN\tISSUER\tNAME\tMATURITY\tPUT\tCALL\tRECORD\tCOUPON\tCCY\tVALUE\tVALUE RUB\tVALUE %\tFLAG\tSTATUS")
	for _, r := range rows {
		issuer := r.IssuerName
		if issuer == "" {
			issuer = r.IssuerCode
		}
		flag := ""
		if r.InWindow {
			flag = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ISIN, issuer, r.Name, dash(r.MaturityDate), dash(r.PutDate), dash(r.CallDate),
			dash(r.RecordDate), dash(r.CouponDate), dash(r.CouponCurrency), dash(r.CouponValue),
			dash(r.CouponValueRub), dash(r.CouponValuePct), flag, r.Status)
	}
	return tw.Flush()
}

// Summary is the one-paragraph report printed after a batch.
func Summary(w io.Writer, res *types.BatchResult) error {
	_, err := fmt.Fprintf(w, "%d records, %d flagged within %d days of %s, %d unresolved, %d failed; rejected %d malformed, %d bad checksum, %d duplicates\n",
		len(res.Records), res.Flagged, res.Horizon, res.Today, res.Unresolved, res.Failed,
		len(res.Malformed), len(res.BadChecksum), res.Duplicates)
	return err
}

// Calendar writes the ISIN x date matrix with a trailing totals row.
func Calendar(w io.Writer, f Format, res *types.CalendarResult) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatCSV:
		sw := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
		if err := writeMatrix(sw.Write, res.Matrix); err != nil {
			return err
		}
		sw.Flush()
		return sw.Error()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		if err := writeMatrix(func(cells []string) error {
			_, err := fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
			return err
		}, res.Matrix); err != nil {
			return err
		}
		return tw.Flush()
	}
}

func writeMatrix(write func([]string) error, m types.DateMatrix) error {
	if err := write(append([]string{"isin"}, m.Dates...)); err != nil {
		return err
	}
	for _, r := range m.Rows {
		line := make([]string, 0, len(m.Dates)+1)
		line = append(line, r.ISIN)
		for _, d := range m.Dates {
			v, ok := r.Cells[d]
			if !ok {
				line = append(line, "")
				continue
			}
			line = append(line, v.StringFixed(2))
		}
		if err := write(line); err != nil {
			return err
		}
	}
	if len(m.Rows) == 0 {
		return nil
	}
	totals := m.Totals()
	line := []string{"total"}
	for _, d := range m.Dates {
		line = append(line, totals[d].StringFixed(2))
	}
	return write(line)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
