// Package fanout runs a per-item function over a batch with bounded
// concurrency, keeping results in input order.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"repo-pretrade/internal/logger"
)

const DefaultWorkers = 8

// Progress receives the number of finished items; done never decreases
// between calls.
type Progress func(done, total int)

type config struct {
	workers  int
	progress Progress
}

type Option func(*config)

func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

func WithProgress(p Progress) Option {
	return func(c *config) { c.progress = p }
}

// Map applies fn to every item with at most workers calls in flight.
// A panic in fn is turned into fallback(item, err) for that slot only.
// Once ctx is done no new item is dispatched: remaining slots get
// fallback(item, ctx.Err()), while items already started run to
// completion detached from the cancellation. The returned bool reports
// whether dispatch was cut short.
func Map[In, Out any](ctx context.Context, items []In, fn func(context.Context, In) Out, fallback func(In, error) Out, opts ...Option) ([]Out, bool) {
	cfg := config{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	total := len(items)
	out := make([]Out, total)
	if total == 0 {
		return out, false
	}

	var (
		mu   sync.Mutex
		done int
	)
	finish := func() {
		if cfg.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		cfg.progress(done, total)
	}

	sem := semaphore.NewWeighted(int64(cfg.workers))
	detached := context.WithoutCancel(ctx)
	var g errgroup.Group

	dispatched := 0
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			defer sem.Release(1)
			defer finish()
			out[i] = run(detached, item, fn, fallback)
			return nil
		})
	}
	_ = g.Wait()

	cancelled := dispatched < total
	if cancelled {
		err := ctx.Err()
		logger.Warn(ctx, "Batch dispatch stopped early", "dispatched", dispatched, "total", total, "error", err)
		for i := dispatched; i < total; i++ {
			out[i] = fallback(items[i], err)
			finish()
		}
	}
	return out, cancelled
}

func run[In, Out any](ctx context.Context, item In, fn func(context.Context, In) Out, fallback func(In, error) Out) (res Out) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Worker panicked", "panic", fmt.Sprint(r))
			res = fallback(item, fmt.Errorf("worker panicked: %v", r))
		}
	}()
	return fn(ctx, item)
}
