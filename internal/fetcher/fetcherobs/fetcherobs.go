package fetcherobs

import (
	"context"
	"errors"
	"time"

	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/trace"
	"repo-pretrade/internal/types"
)

type observableFetcher struct {
	fetcher interfaces.RecordFetcher
}

var _ interfaces.RecordFetcher = (*observableFetcher)(nil)

func Wrap(f interfaces.RecordFetcher) interfaces.RecordFetcher {
	return &observableFetcher{
		fetcher: f,
	}
}

func (of *observableFetcher) FetchRecord(ctx context.Context, sec types.ResolvedSecurity) types.BondRecord {
	ctx, span := trace.StartSpanWith(ctx, "fetcher.FetchRecord", "isin", sec.ISIN, "secid", sec.SecID)
	defer span.End()

	start := time.Now()
	rec := of.fetcher.FetchRecord(ctx, sec)

	if rec.Status != types.StatusSuccess {
		logger.ErrorWithErrSkip(ctx, 1, "Record fetch did not succeed", errors.New(rec.Error),
			"isin", sec.ISIN,
			"status", string(rec.Status),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return rec
	}

	logger.Debug(ctx, "Record fetched",
		"isin", sec.ISIN,
		"maturity", types.FormatDate(rec.MaturityDate),
		"coupon_date", types.FormatDate(rec.CouponDate),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec
}

func (of *observableFetcher) FetchSchedule(ctx context.Context, sec types.ResolvedSecurity) types.Schedule {
	ctx, span := trace.StartSpanWith(ctx, "fetcher.FetchSchedule", "isin", sec.ISIN)
	defer span.End()

	start := time.Now()
	s := of.fetcher.FetchSchedule(ctx, sec)

	logger.Debug(ctx, "Schedule fetched",
		"isin", sec.ISIN,
		"status", string(s.Status),
		"coupons", len(s.Coupons),
		"amortizations", len(s.Amortizations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s
}
