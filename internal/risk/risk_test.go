package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-pretrade/internal/store"
	"repo-pretrade/internal/types"
)

func datePtr(s string) *types.Date { return types.MustDate(s).Ptr() }

func TestInWindow(t *testing.T) {
	today := types.MustDate("2024-01-10")

	tests := []struct {
		name string
		rec  types.BondRecord
		want bool
	}{
		{"maturity inside", types.BondRecord{MaturityDate: datePtr("2024-01-12")}, true},
		{"maturity outside", types.BondRecord{MaturityDate: datePtr("2024-02-01")}, false},
		{"boundary day", types.BondRecord{MaturityDate: datePtr("2024-01-13")}, true},
		{"day after boundary", types.BondRecord{MaturityDate: datePtr("2024-01-14")}, false},
		{"past date", types.BondRecord{CallDate: datePtr("2023-06-01")}, true},
		{"record date only", types.BondRecord{RecordDate: datePtr("2024-01-11")}, true},
		{"coupon inside, maturity far", types.BondRecord{
			MaturityDate: datePtr("2030-01-01"), CouponDate: datePtr("2024-01-11"),
		}, true},
		{"put inside", types.BondRecord{PutDate: datePtr("2024-01-10")}, true},
		{"all null", types.BondRecord{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InWindow(tt.rec, today, 3))
		})
	}
}

func TestHorizon(t *testing.T) {
	cfg := store.Default()

	h, err := Horizon(true, 0, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, h)

	h, err = Horizon(false, 2, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, h)

	h, err = Horizon(false, 366, cfg)
	require.NoError(t, err)
	assert.Equal(t, 367, h)

	_, err = Horizon(false, 1, cfg)
	assert.True(t, errors.Is(err, ErrExtraDaysRange))

	_, err = Horizon(false, 367, cfg)
	assert.ErrorIs(t, err, ErrExtraDaysRange)
}

func TestHorizonOvernightIsConfigurable(t *testing.T) {
	cfg := store.Default()
	cfg.Risk.OvernightDays = 3

	h, err := Horizon(true, 100, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, h)
}

func TestAnnotate(t *testing.T) {
	today := types.MustDate("2024-01-10")
	records := []types.BondRecord{
		{ISIN: "A", Status: types.StatusSuccess, MaturityDate: datePtr("2024-01-12")},
		{ISIN: "B", Status: types.StatusSuccess, MaturityDate: datePtr("2024-02-01")},
		{ISIN: "C", Status: types.StatusUnresolved},
	}

	n := Annotate(context.Background(), records, today, 3)

	assert.Equal(t, 1, n)
	assert.True(t, records[0].InWindow)
	assert.False(t, records[1].InWindow)
	assert.False(t, records[2].InWindow)
}
