package fetcher

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-pretrade/internal/iss"
	"repo-pretrade/internal/types"
)

type stubSource struct {
	bond        map[string]types.Attrs
	desc        map[string]types.Attrs
	bondization map[string]*iss.Bondization
	panicOn     string
}

func (s *stubSource) SearchSecurities(ctx context.Context, q string) (iss.Table, error) {
	return iss.Table{}, iss.ErrNotFound
}

func (s *stubSource) Description(ctx context.Context, isin string) (types.Attrs, error) {
	if a, ok := s.desc[isin]; ok {
		return a, nil
	}
	return nil, iss.ErrNotFound
}

func (s *stubSource) DescriptionXML(ctx context.Context, isin string) (types.Attrs, error) {
	return nil, iss.ErrNotFound
}

func (s *stubSource) BondSecurity(ctx context.Context, secid string) (types.Attrs, error) {
	if secid == s.panicOn {
		panic("malformed payload")
	}
	if a, ok := s.bond[secid]; ok {
		return a, nil
	}
	return nil, iss.ErrNotFound
}

func (s *stubSource) Bondization(ctx context.Context, id string) (*iss.Bondization, error) {
	if b, ok := s.bondization[id]; ok {
		return b, nil
	}
	return nil, iss.ErrEmptyTable
}

type stubBoards map[string]types.Attrs

func (b stubBoards) Warm(ctx context.Context) {}

func (b stubBoards) Lookup(ctx context.Context, isin string) (types.Attrs, string, bool) {
	row, ok := b[isin]
	return row, "tqcb", ok
}

var today = types.MustDate("2024-01-10")

func fixedToday() types.Date { return today }

func couponTable(rows ...[]any) iss.Table {
	return iss.Table{
		Columns: []string{"isin", "coupondate", "recorddate", "facevalue", "faceunit", "value", "valueprc", "value_rub"},
		Data:    rows,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFetchRecordCombinesSources(t *testing.T) {
	src := &stubSource{
		bond: map[string]types.Attrs{"SU26238RMFS4": {
			"SECNAME": "OFZ 26238", "MATDATE": "2041-05-15", "EMITTER_ID": "1",
		}},
		bondization: map[string]*iss.Bondization{"SU26238RMFS4": {
			Coupons: couponTable(
				[]any{"RU000A1038V6", "2023-12-06", "2023-12-05", "1000", "SUB", "35.4", "7.1", "35.4"},
				[]any{"RU000A1038V6", "2024-06-05", "2024-06-04", "1000", "SUB", "35.4", "7.1", "35.4"},
				[]any{"RU000A1038V6", "2024-12-04", "2024-12-03", "1000", "SUB", "35.4", "7.1", "35.4"},
			),
			Info: types.Attrs{"FACEUNIT": "SUR"},
		}},
	}
	f := New(src, nil, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{
		ISIN: "RU000A1038V6", SecID: "SU26238RMFS4", Source: types.SourceSearch,
	})

	assert.Equal(t, types.StatusSuccess, rec.Status)
	assert.Equal(t, "OFZ 26238", rec.Name)
	assert.Equal(t, "1", rec.IssuerCode)
	assert.Equal(t, "2041-05-15", types.FormatDate(rec.MaturityDate))
	assert.Equal(t, "2024-06-05", types.FormatDate(rec.CouponDate))
	assert.Equal(t, "2024-06-04", types.FormatDate(rec.RecordDate))
	assert.Equal(t, "SUR", rec.CouponCurrency, "issue-level currency beats the row")
	require.True(t, rec.CouponValue.Valid)
	assert.True(t, rec.CouponValue.Decimal.Equal(dec("35.4")))
	assert.True(t, rec.CouponValuePct.Decimal.Equal(dec("7.1")))
	assert.Nil(t, rec.PutDate)
	assert.Nil(t, rec.CallDate)
}

func TestFetchRecordWithExtendedColumnRules(t *testing.T) {
	src := &stubSource{bondization: map[string]*iss.Bondization{"S1": {
		Coupons: iss.Table{
			Columns: []string{"isin", "payday", "fixday", "value"},
			Data: [][]any{
				{"RU000A1038V6", "2024-12-04", "2024-12-03", "35.4"},
				{"RU000A1038V6", "2024-06-05", "2024-06-04", "36.1"},
			},
		},
	}}}
	sec := types.ResolvedSecurity{ISIN: "RU000A1038V6", SecID: "S1", Source: types.SourceSearch}

	plain := New(src, nil, WithToday(fixedToday)).FetchRecord(context.Background(), sec)
	assert.Equal(t, "2024-06-04", types.FormatDate(plain.CouponDate), "unknown columns fall back to a full scan")
	assert.Nil(t, plain.RecordDate)

	rules := append([]Rule{
		{Field: FieldCouponDate, Matchers: []Matcher{{Exact: []string{"PAYDAY"}}}},
		{Field: FieldRecordDate, Matchers: []Matcher{{Exact: []string{"FIXDAY"}}}},
	}, DefaultColumnRules...)
	rec := New(src, nil, WithToday(fixedToday), WithRules(rules)).FetchRecord(context.Background(), sec)

	assert.Equal(t, "2024-06-05", types.FormatDate(rec.CouponDate))
	assert.Equal(t, "2024-06-04", types.FormatDate(rec.RecordDate))
	require.True(t, rec.CouponValue.Valid)
	assert.True(t, rec.CouponValue.Decimal.Equal(dec("36.1")))
}

func TestFetchRecordMissingFieldIsNotAFailure(t *testing.T) {
	src := &stubSource{
		bond: map[string]types.Attrs{"RU000A0JX0J2": {"SECNAME": "Bond", "MATDATE": "2030-01-01"}},
	}
	f := New(src, nil, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A0JX0J2", SecID: "RU000A0JX0J2"})

	assert.Equal(t, types.StatusSuccess, rec.Status)
	assert.Empty(t, rec.Error)
	assert.Nil(t, rec.CouponDate)
	assert.False(t, rec.CouponValue.Valid)
	assert.NotNil(t, rec.MaturityDate)
}

func TestFetchRecordUnresolvedWithoutAnyData(t *testing.T) {
	f := New(&stubSource{}, stubBoards{}, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A0ZYJT2"})

	assert.Equal(t, types.StatusUnresolved, rec.Status)
	assert.NotEmpty(t, rec.Error)
	assert.Nil(t, rec.MaturityDate)
}

func TestFetchRecordUnresolvedButDescribedByISIN(t *testing.T) {
	src := &stubSource{desc: map[string]types.Attrs{"RU000A0ZYJT2": {"NAME": "Described", "MATDATE": "2027-03-01"}}}
	f := New(src, nil, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A0ZYJT2"})

	assert.Equal(t, types.StatusSuccess, rec.Status)
	assert.Equal(t, "Described", rec.Name)
}

func TestFetchRecordDescriptionFillsOnlyMissingFields(t *testing.T) {
	src := &stubSource{
		bond: map[string]types.Attrs{"X1": {"SECNAME": "From secid"}},
		desc: map[string]types.Attrs{"RU000A101QE0": {
			"NAME": "From ISIN", "MATDATE": "2029-09-09", "PUT_OPTION_DATE": "2026-03-03",
		}},
	}
	f := New(src, nil, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A101QE0", SecID: "X1"})

	assert.Equal(t, "From secid", rec.Name)
	assert.Equal(t, "2029-09-09", types.FormatDate(rec.MaturityDate))
	assert.Equal(t, "2026-03-03", types.FormatDate(rec.PutDate))
}

func TestFetchRecordBoardFallback(t *testing.T) {
	src := &stubSource{bond: map[string]types.Attrs{"X2": {"SECNAME": "Board bond"}}}
	boards := stubBoards{"RU000A105KN5": {"NEXTCOUPON": "2024-02-01", "FACEUNIT": "USD", "RECORDDATE": "0000-00-00"}}
	f := New(src, boards, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A105KN5", SecID: "X2"})

	assert.Equal(t, "2024-02-01", types.FormatDate(rec.CouponDate))
	assert.Equal(t, "USD", rec.CouponCurrency)
	assert.Nil(t, rec.RecordDate)
}

func TestFetchRecordRecoversPanic(t *testing.T) {
	f := New(&stubSource{panicOn: "BOOM"}, nil, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A1006C3", SecID: "BOOM"})

	assert.Equal(t, types.StatusUnresolved, rec.Status)
	assert.Equal(t, "RU000A1006C3", rec.ISIN)
	assert.Contains(t, rec.Error, "malformed payload")
}

func TestFetchRecordFallsBackToISINBondization(t *testing.T) {
	src := &stubSource{
		bond: map[string]types.Attrs{"X3": {"SECNAME": "x"}},
		bondization: map[string]*iss.Bondization{"RU000A1006C3": {
			Coupons: couponTable([]any{"RU000A1006C3", "2024-03-01", "", "1000", "RUB", "12.5", "", "12.5"}),
		}},
	}
	f := New(src, nil, WithToday(fixedToday))

	rec := f.FetchRecord(context.Background(), types.ResolvedSecurity{ISIN: "RU000A1006C3", SecID: "X3"})

	assert.Equal(t, "2024-03-01", types.FormatDate(rec.CouponDate))
	assert.Equal(t, "RUB", rec.CouponCurrency)
	assert.False(t, rec.CouponValuePct.Valid)
}

func TestFetchSchedule(t *testing.T) {
	src := &stubSource{
		bond: map[string]types.Attrs{"S1": {"MATDATE": "2025-01-15"}},
		bondization: map[string]*iss.Bondization{"S1": {
			Coupons: couponTable(
				[]any{"RU000A0JX0J2", "2024-07-15", "", "1000", "RUB", "40", "", "40"},
				[]any{"RU000A0JX0J2", "2025-01-15", "", "1000", "RUB", "40", "", "40"},
			),
			Info: types.Attrs{"FACEVALUE": "1000"},
		}},
	}
	f := New(src, nil, WithToday(fixedToday))

	s := f.FetchSchedule(context.Background(), types.ResolvedSecurity{ISIN: "RU000A0JX0J2", SecID: "S1"})

	assert.Equal(t, types.StatusSuccess, s.Status)
	assert.Equal(t, "2025-01-15", types.FormatDate(s.MaturityDate))
	require.True(t, s.FaceValue.Valid)
	assert.True(t, s.FaceValue.Decimal.Equal(dec("1000")))
	require.Len(t, s.Coupons, 2)
	assert.Equal(t, "2024-07-15", s.Coupons[0].Date.String())
	assert.Empty(t, s.Amortizations)
}

func TestFetchScheduleUnresolved(t *testing.T) {
	f := New(&stubSource{}, nil, WithToday(fixedToday))
	s := f.FetchSchedule(context.Background(), types.ResolvedSecurity{ISIN: "RU000A0ZYJT2"})
	assert.Equal(t, types.StatusUnresolved, s.Status)
}
