package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceTag records which resolution tier produced a match.
type SourceTag string

const (
	SourceNone        SourceTag = ""
	SourceSearch      SourceTag = "search"
	SourceDescription SourceTag = "description"
	SourceBoard       SourceTag = "board"
)

type Status string

const (
	StatusSuccess    Status = "success"
	StatusUnresolved Status = "unresolved"
	StatusFailed     Status = "failed"
)

type ResolvedSecurity struct {
	ISIN       string    `json:"isin"`
	SecID      string    `json:"secid,omitempty"`
	IssuerCode string    `json:"issuer_code,omitempty"`
	Source     SourceTag `json:"source,omitempty"`
	Board      string    `json:"board,omitempty"`
}

func (r ResolvedSecurity) Resolved() bool { return r.SecID != "" }

// BondRecord is the normalized per-ISIN output of the pipeline. Nil dates mean
// "not found"; Status tells a lookup failure apart from a missing field.
type BondRecord struct {
	ISIN           string              `json:"isin"`
	IssuerCode     string              `json:"issuer_code,omitempty"`
	IssuerName     string              `json:"issuer_name,omitempty"`
	SecID          string              `json:"secid,omitempty"`
	Name           string              `json:"name,omitempty"`
	MaturityDate   *Date               `json:"maturity_date"`
	PutDate        *Date               `json:"put_date"`
	CallDate       *Date               `json:"call_date"`
	RecordDate     *Date               `json:"record_date"`
	CouponDate     *Date               `json:"coupon_date"`
	CouponCurrency string              `json:"coupon_currency,omitempty"`
	CouponValue    decimal.NullDecimal `json:"coupon_value"`
	CouponValueRub decimal.NullDecimal `json:"coupon_value_rub"`
	CouponValuePct decimal.NullDecimal `json:"coupon_value_pct"`
	Source         SourceTag           `json:"source,omitempty"`
	Status         Status              `json:"status"`
	Error          string              `json:"error,omitempty"`
	InWindow       bool                `json:"in_window"`
}

// KeyDates returns the dates the risk window looks at.
func (r BondRecord) KeyDates() []*Date {
	return []*Date{r.MaturityDate, r.PutDate, r.CallDate, r.RecordDate, r.CouponDate}
}

// FailedRecord builds the terminal record for an ISIN whose processing failed.
func FailedRecord(isin string, status Status, err error) BondRecord {
	rec := BondRecord{ISIN: isin, Status: status}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// BatchResult is what one pipeline run hands to presentation and export.
type BatchResult struct {
	RunID       string        `json:"run_id"`
	Today       Date          `json:"today"`
	Horizon     int           `json:"horizon_days"`
	Records     []BondRecord  `json:"records"`
	Malformed   []string      `json:"malformed,omitempty"`
	BadChecksum []string      `json:"bad_checksum,omitempty"`
	Duplicates  int           `json:"duplicates"`
	Unresolved  int           `json:"unresolved"`
	Failed      int           `json:"failed"`
	Flagged     int           `json:"flagged"`
	Cancelled   bool          `json:"cancelled,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// FlaggedRecords returns only the in-window records.
func (b *BatchResult) FlaggedRecords() []BondRecord {
	var out []BondRecord
	for _, r := range b.Records {
		if r.InWindow {
			out = append(out, r)
		}
	}
	return out
}
