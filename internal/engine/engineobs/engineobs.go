package engineobs

import (
	"context"
	"time"

	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/trace"
	"repo-pretrade/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Run(ctx context.Context, raw []string, opts ...interfaces.RunOption) *types.BatchResult {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting batch",
		"inputs", len(raw),
	)

	res := oe.engine.Run(ctx, raw, opts...)

	logger.InfoSkip(ctx, 1, "Batch completed",
		"run_id", res.RunID,
		"records", len(res.Records),
		"rejected", len(res.Malformed)+len(res.BadChecksum),
		"flagged", res.Flagged,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res
}

func (oe *observableEngine) Lookup(ctx context.Context, isin string) (types.BondRecord, error) {
	ctx, span := trace.StartSpanWith(ctx, "engine.Lookup", "isin", isin)
	defer span.End()

	start := time.Now()

	rec, err := oe.engine.Lookup(ctx, isin)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Lookup rejected", err,
			"isin", isin,
		)
		return rec, err
	}

	logger.InfoSkip(ctx, 1, "Lookup completed",
		"isin", isin,
		"status", string(rec.Status),
		"in_window", rec.InWindow,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return rec, nil
}
