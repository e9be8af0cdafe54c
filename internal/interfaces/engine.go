package interfaces

import (
	"context"

	"repo-pretrade/internal/types"
)

// Engine runs the validate, resolve, fetch and flag pipeline over a batch.
type Engine interface {
	Run(ctx context.Context, raw []string, opts ...RunOption) *types.BatchResult
	Lookup(ctx context.Context, isin string) (types.BondRecord, error)
}

// RunOptions tunes one batch run; zero values fall back to configuration.
type RunOptions struct {
	Workers  int
	Horizon  int
	Progress func(done, total int)
}

type RunOption func(*RunOptions)

func WithWorkers(n int) RunOption {
	return func(o *RunOptions) { o.Workers = n }
}

func WithHorizon(days int) RunOption {
	return func(o *RunOptions) { o.Horizon = days }
}

func WithProgress(p func(done, total int)) RunOption {
	return func(o *RunOptions) { o.Progress = p }
}
