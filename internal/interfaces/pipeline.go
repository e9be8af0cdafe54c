package interfaces

import (
	"context"

	"repo-pretrade/internal/types"
)

type Resolver interface {
	Resolve(ctx context.Context, isin string) types.ResolvedSecurity
	Warm(ctx context.Context)
}

type RecordFetcher interface {
	FetchRecord(ctx context.Context, sec types.ResolvedSecurity) types.BondRecord
	FetchSchedule(ctx context.Context, sec types.ResolvedSecurity) types.Schedule
}

// CalendarBuilder turns positions into a dated cash-flow matrix.
type CalendarBuilder interface {
	Build(ctx context.Context, text string) *types.CalendarResult
	BuildPositions(ctx context.Context, positions []types.Position) *types.CalendarResult
}
