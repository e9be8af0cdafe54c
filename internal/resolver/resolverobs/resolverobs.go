package resolverobs

import (
	"context"
	"time"

	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/trace"
	"repo-pretrade/internal/types"
)

type observableResolver struct {
	resolver interfaces.Resolver
}

var _ interfaces.Resolver = (*observableResolver)(nil)

func Wrap(r interfaces.Resolver) interfaces.Resolver {
	return &observableResolver{
		resolver: r,
	}
}

func (or *observableResolver) Resolve(ctx context.Context, isin string) types.ResolvedSecurity {
	ctx, span := trace.StartSpanWith(ctx, "resolver.Resolve", "isin", isin)
	defer span.End()

	start := time.Now()
	res := or.resolver.Resolve(ctx, isin)

	if !res.Resolved() {
		logger.WarnSkip(ctx, 1, "Resolution exhausted all tiers",
			"isin", isin,
			"issuer_code", res.IssuerCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res
	}

	logger.Debug(ctx, "Resolution completed",
		"isin", isin,
		"secid", res.SecID,
		"source", string(res.Source),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (or *observableResolver) Warm(ctx context.Context) {
	timer := logger.StartOperation(ctx, "resolver.Warm")
	or.resolver.Warm(timer.GetContext())
	timer.End()
}
