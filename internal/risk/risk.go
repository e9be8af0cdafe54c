// Package risk decides whether a bond has a key date inside the pre-trade
// horizon.
package risk

import (
	"context"
	"errors"
	"fmt"

	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/store"
	"repo-pretrade/internal/types"
)

var ErrExtraDaysRange = errors.New("extra days out of range")

// Horizon returns the window length in days: the configured overnight
// constant, or one day plus the requested extra days.
func Horizon(overnight bool, extraDays int, cfg *store.Config) (int, error) {
	if overnight {
		return cfg.Risk.OvernightDays, nil
	}
	if extraDays < cfg.Risk.MinExtraDays || extraDays > cfg.Risk.MaxExtraDays {
		return 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrExtraDaysRange,
			extraDays, cfg.Risk.MinExtraDays, cfg.Risk.MaxExtraDays)
	}
	return 1 + extraDays, nil
}

// InWindow reports whether any key date is set and falls on or before
// today + horizon. Past dates count.
func InWindow(rec types.BondRecord, today types.Date, horizon int) bool {
	limit := today.AddDays(horizon)
	for _, d := range rec.KeyDates() {
		if d != nil && d.OnOrBefore(limit) {
			return true
		}
	}
	return false
}

// Annotate sets InWindow on every successful record and returns how many
// were flagged.
func Annotate(ctx context.Context, records []types.BondRecord, today types.Date, horizon int) int {
	flagged := 0
	for i := range records {
		rec := &records[i]
		rec.InWindow = rec.Status == types.StatusSuccess && InWindow(*rec, today, horizon)
		if !rec.InWindow {
			continue
		}
		flagged++
		logger.RiskFlag(ctx, rec.ISIN, types.FormatDate(types.MinDate(rec.KeyDates()...)), horizon)
	}
	return flagged
}
