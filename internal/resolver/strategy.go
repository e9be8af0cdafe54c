package resolver

import (
	"context"
	"errors"
	"fmt"

	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/types"
)

var ErrNoMatch = errors.New("no matching row")

// Strategy is one resolution tier. A result without SecID is a miss, but
// any issuer code it carries is kept for later tiers.
type Strategy struct {
	Name    types.SourceTag
	Label   string
	Resolve func(ctx context.Context, isin string) (types.ResolvedSecurity, error)
}

func (s Strategy) label() string {
	if s.Label != "" {
		return s.Label
	}
	return string(s.Name)
}

// FirstSuccess tries strategies in order and returns the first result with
// an internal code. Tier errors and panics are swallowed after a warning;
// plain misses are only logged at debug.
// When every tier misses, the result has no SecID and SourceNone.
func FirstSuccess(ctx context.Context, isin string, strategies ...Strategy) types.ResolvedSecurity {
	out := types.ResolvedSecurity{ISIN: isin}
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}
		res, err := runTier(ctx, s, isin)
		if out.IssuerCode == "" {
			out.IssuerCode = res.IssuerCode
		}
		if errors.Is(err, ErrNoMatch) {
			logger.Debug(ctx, "Resolution tier missed", "isin", isin, "tier", s.label())
			continue
		}
		if err != nil {
			logger.Warn(ctx, "Resolution tier failed", "isin", isin, "tier", s.label(), "error", err)
			continue
		}
		if res.SecID == "" {
			continue
		}
		out.SecID = res.SecID
		out.Source = s.Name
		out.Board = res.Board
		if out.IssuerCode == "" {
			out.IssuerCode = res.IssuerCode
		}
		return out
	}
	return out
}

func runTier(ctx context.Context, s Strategy, isin string) (res types.ResolvedSecurity, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tier %s panicked: %v", s.label(), r)
		}
	}()
	return s.Resolve(ctx, isin)
}
