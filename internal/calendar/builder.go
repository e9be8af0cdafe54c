// Package calendar builds the position-weighted payment calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"repo-pretrade/internal/fanout"
	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/types"
)

type Builder struct {
	resolver interfaces.Resolver
	fetcher  interfaces.RecordFetcher
	workers  int
	today    func() types.Date
	newID    func() string
}

type Option func(*Builder)

func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

func WithToday(today func() types.Date) Option {
	return func(b *Builder) { b.today = today }
}

func WithRunID(newID func() string) Option {
	return func(b *Builder) { b.newID = newID }
}

func NewBuilder(r interfaces.Resolver, f interfaces.RecordFetcher, opts ...Option) *Builder {
	b := &Builder{
		resolver: r,
		fetcher:  f,
		workers:  fanout.DefaultWorkers,
		today:    func() types.Date { return types.DateOf(time.Now()) },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build parses position lines and aggregates their schedules.
func (b *Builder) Build(ctx context.Context, text string) *types.CalendarResult {
	positions, invalid := ParsePositions(text)
	res := b.BuildPositions(ctx, positions)
	res.Invalid = append(invalid, res.Invalid...)
	return res
}

// BuildPositions fetches schedules for already-parsed positions.
func (b *Builder) BuildPositions(ctx context.Context, positions []types.Position) *types.CalendarResult {
	timer := logger.StartOperation(ctx, "calendar.Build", "positions", len(positions))
	ctx = timer.GetContext()

	res := &types.CalendarResult{
		RunID:     b.newID(),
		Today:     b.today(),
		Positions: positions,
	}
	if len(positions) == 0 {
		timer.End("dates", 0)
		return res
	}

	b.resolver.Warm(ctx)
	ids := make([]string, len(positions))
	for i, p := range positions {
		ids[i] = p.ISIN
	}
	schedules, cancelled := fanout.Map(ctx, ids, b.schedule, failedSchedule, fanout.WithWorkers(b.workers))

	for _, s := range schedules {
		if s.Status != types.StatusSuccess {
			res.Failed = append(res.Failed, s.ISIN)
		}
	}
	res.Matrix = Aggregate(schedules, positions, res.Today)

	if cancelled {
		timer.EndWithError(errors.New("calendar build cancelled"), "failed", len(res.Failed))
		return res
	}
	timer.End("dates", len(res.Matrix.Dates), "failed", len(res.Failed))
	return res
}

func (b *Builder) schedule(ctx context.Context, id string) types.Schedule {
	return b.fetcher.FetchSchedule(ctx, b.resolver.Resolve(ctx, id))
}

func failedSchedule(id string, err error) types.Schedule {
	status := types.StatusUnresolved
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = types.StatusFailed
	}
	return types.Schedule{ISIN: id, Status: status, Error: fmt.Sprint(err)}
}
