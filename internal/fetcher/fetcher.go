// Package fetcher turns a resolved security into a normalized BondRecord
// by combining descriptive, schedule and board-snapshot sources.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/iss"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/types"
)

var errNoData = errors.New("no data source returned anything for this ISIN")

// Attribute spellings per descriptive field, in priority order.
var (
	nameKeys     = []string{"SECNAME", "SEC_NAME", "NAME", "SHORTNAME"}
	maturityKeys = []string{"MATDATE"}
	putKeys      = []string{"PUTOPTIONDATE", "PUT_OPTION_DATE"}
	callKeys     = []string{"CALLOPTIONDATE", "CALL_OPTION_DATE"}
	issuerKeys   = []string{"EMITTER_ID", "EMITTERID", "EMITENT_ID"}
	faceUnitKeys = []string{"FACEUNIT", "FACEUNIT_S"}

	boardRecordKeys = []string{"RECORDDATE", "RECORD_DATE", "RECORD"}
	boardCouponKeys = []string{"COUPONDATE", "COUPON_DATE", "COUPON", "NEXTCOUPON"}
)

type Fetcher struct {
	src    interfaces.SecuritySource
	boards interfaces.BoardLookup
	rules  []Rule
	today  func() types.Date
}

var _ interfaces.RecordFetcher = (*Fetcher)(nil)

type Option func(*Fetcher)

// WithToday fixes the reference date; the default is the current day in
// the given location.
func WithToday(today func() types.Date) Option {
	return func(f *Fetcher) { f.today = today }
}

// WithRules replaces the column rules table, e.g. with extra spellings
// prepended to DefaultColumnRules.
func WithRules(rules []Rule) Option {
	return func(f *Fetcher) { f.rules = rules }
}

// TodayIn returns a clock for the calendar day in loc.
func TodayIn(loc *time.Location) func() types.Date {
	return func() types.Date { return types.DateOf(time.Now().In(loc)) }
}

func New(src interfaces.SecuritySource, boards interfaces.BoardLookup, opts ...Option) *Fetcher {
	f := &Fetcher{
		src:    src,
		boards: boards,
		rules:  DefaultColumnRules,
		today:  TodayIn(time.UTC),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchRecord never fails: errors degrade to missing fields, and a panic
// anywhere yields an unresolved record carrying the panic text.
func (f *Fetcher) FetchRecord(ctx context.Context, sec types.ResolvedSecurity) (rec types.BondRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = types.FailedRecord(sec.ISIN, types.StatusUnresolved, fmt.Errorf("fetch panicked: %v", r))
			logger.Error(ctx, "Record fetch panicked", "isin", sec.ISIN, "panic", fmt.Sprint(r))
		}
	}()

	today := f.today()
	rec = types.BondRecord{
		ISIN:       sec.ISIN,
		SecID:      sec.SecID,
		IssuerCode: sec.IssuerCode,
		Source:     sec.Source,
		Status:     types.StatusSuccess,
	}

	issueFaceUnit, descFound := f.fillDescriptive(ctx, &rec)
	b := f.bondization(ctx, sec)
	schedFound := b != nil
	if b != nil {
		next := PickNextCoupon(b.Coupons, f.rules, today)
		rec.CouponDate = next.CouponDate
		rec.RecordDate = next.RecordDate
		rec.CouponValue = next.Value
		rec.CouponValueRub = next.ValueRub
		rec.CouponValuePct = next.ValuePct

		// issue-level currency first, then the schedule row
		rec.CouponCurrency = b.Info.First(faceUnitKeys...)
		if rec.CouponCurrency == "" {
			rec.CouponCurrency = issueFaceUnit
		}
		if rec.CouponCurrency == "" {
			rec.CouponCurrency = next.Currency
		}
	} else {
		rec.CouponCurrency = issueFaceUnit
	}

	boardFound := f.fillFromBoard(ctx, &rec)

	if !sec.Resolved() && !descFound && !schedFound && !boardFound {
		rec = types.FailedRecord(sec.ISIN, types.StatusUnresolved, errNoData)
		rec.IssuerCode = sec.IssuerCode
	}
	return rec
}

// fillDescriptive reads name, maturity and option dates by secid, then
// fills whatever is still missing from the ISIN-keyed description.
// Populated fields are never overwritten.
func (f *Fetcher) fillDescriptive(ctx context.Context, rec *types.BondRecord) (faceUnit string, found bool) {
	apply := func(attrs types.Attrs) {
		found = true
		if rec.Name == "" {
			rec.Name = attrs.First(nameKeys...)
		}
		if rec.MaturityDate == nil {
			rec.MaturityDate = NormalizeDate(attrs.First(maturityKeys...))
		}
		if rec.PutDate == nil {
			rec.PutDate = NormalizeDate(attrs.First(putKeys...))
		}
		if rec.CallDate == nil {
			rec.CallDate = NormalizeDate(attrs.First(callKeys...))
		}
		if rec.IssuerCode == "" {
			rec.IssuerCode = attrs.First(issuerKeys...)
		}
		if faceUnit == "" {
			faceUnit = attrs.First(faceUnitKeys...)
		}
	}

	if rec.SecID != "" {
		attrs, err := f.src.BondSecurity(ctx, rec.SecID)
		if err != nil {
			logger.Debug(ctx, "Descriptive fetch by secid failed", "isin", rec.ISIN, "secid", rec.SecID, "error", err)
		} else {
			apply(attrs)
		}
	}
	if rec.Name == "" || rec.MaturityDate == nil {
		attrs, err := f.src.Description(ctx, rec.ISIN)
		if err != nil {
			logger.Debug(ctx, "Descriptive fetch by ISIN failed", "isin", rec.ISIN, "error", err)
		} else {
			apply(attrs)
		}
	}
	return faceUnit, found
}

// bondization prefers the secid-keyed schedule and falls back to the
// ISIN-keyed one for coupons and issue info separately.
func (f *Fetcher) bondization(ctx context.Context, sec types.ResolvedSecurity) *iss.Bondization {
	var b *iss.Bondization
	if sec.SecID != "" {
		var err error
		if b, err = f.src.Bondization(ctx, sec.SecID); err != nil {
			logger.Debug(ctx, "Bondization by secid failed", "isin", sec.ISIN, "secid", sec.SecID, "error", err)
			b = nil
		}
	}
	if b != nil && !b.Coupons.Empty() && b.Info != nil {
		return b
	}

	fb, err := f.src.Bondization(ctx, sec.ISIN)
	if err != nil {
		logger.Debug(ctx, "Bondization by ISIN failed", "isin", sec.ISIN, "error", err)
		return b
	}
	if b == nil {
		return fb
	}
	merged := *b
	if merged.Coupons.Empty() && !fb.Coupons.Empty() {
		merged.Coupons = fb.Coupons
	}
	if merged.Amortizations.Empty() {
		merged.Amortizations = fb.Amortizations
	}
	if merged.Info == nil {
		merged.Info = fb.Info
	}
	return &merged
}

// fillFromBoard fills record date, coupon date and currency from the
// cached board row when the schedule sources left them empty.
func (f *Fetcher) fillFromBoard(ctx context.Context, rec *types.BondRecord) bool {
	if f.boards == nil || (rec.RecordDate != nil && rec.CouponDate != nil && rec.CouponCurrency != "") {
		return false
	}
	row, board, ok := f.boards.Lookup(ctx, rec.ISIN)
	if !ok {
		return false
	}
	if rec.RecordDate == nil {
		rec.RecordDate = NormalizeDate(row.First(boardRecordKeys...))
	}
	if rec.CouponDate == nil {
		rec.CouponDate = NormalizeDate(row.First(boardCouponKeys...))
	}
	if rec.CouponCurrency == "" {
		rec.CouponCurrency = row.First(faceUnitKeys...)
	}
	logger.Debug(ctx, "Filled record from board snapshot", "isin", rec.ISIN, "board", board)
	return true
}

// FetchSchedule gathers the calendar inputs: future coupons, amortizations,
// face value and maturity.
func (f *Fetcher) FetchSchedule(ctx context.Context, sec types.ResolvedSecurity) (s types.Schedule) {
	defer func() {
		if r := recover(); r != nil {
			s = types.Schedule{ISIN: sec.ISIN, Status: types.StatusUnresolved, Error: fmt.Sprintf("schedule panicked: %v", r)}
		}
	}()

	s = types.Schedule{ISIN: sec.ISIN, SecID: sec.SecID, Status: types.StatusSuccess}
	found := false

	var faceValue string
	if sec.SecID != "" {
		if attrs, err := f.src.BondSecurity(ctx, sec.SecID); err == nil {
			found = true
			s.MaturityDate = NormalizeDate(attrs.First(maturityKeys...))
			faceValue = attrs.First("FACEVALUE")
		}
	}
	if s.MaturityDate == nil {
		if attrs, err := f.src.Description(ctx, sec.ISIN); err == nil {
			found = true
			s.MaturityDate = NormalizeDate(attrs.First(maturityKeys...))
			if faceValue == "" {
				faceValue = attrs.First("FACEVALUE")
			}
		}
	}

	if b := f.bondization(ctx, sec); b != nil {
		found = true
		s.Coupons = CashFlows(b.Coupons, f.rules, FieldCouponDate)
		s.Amortizations = CashFlows(b.Amortizations, f.rules, FieldAmortDate)
		if v := b.Info.FirstPrefix("FACEVALUE"); v != "" {
			s.FaceValue = types.ParseNullDecimal(v)
		}
		if faceValue == "" {
			for _, row := range b.Coupons.Rows() {
				if v := row.First("FACEVALUE"); v != "" {
					faceValue = v
					break
				}
			}
		}
	}
	if !s.FaceValue.Valid && faceValue != "" {
		s.FaceValue = types.ParseNullDecimal(faceValue)
	}

	if !sec.Resolved() && !found {
		s.Status = types.StatusUnresolved
		s.Error = errNoData.Error()
	}
	return s
}
