// Package refcache holds process-lifetime reference data (board snapshots,
// issuer directory) behind time-to-live snapshots.
package refcache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"repo-pretrade/internal/logger"
)

var ErrNoSnapshot = errors.New("snapshot not loaded")

// Clock returns the current time; tests inject a fake one.
type Clock func() time.Time

type entry[T any] struct {
	value     T
	ok        bool // value was loaded successfully at least once
	err       error
	fetchedAt time.Time
	expiresAt time.Time
}

// Snapshot caches the result of load for ttl. Readers never wait on a
// refresh when a previously loaded value exists: stale values are served
// while a single background load replaces them. Entries are immutable and
// swapped atomically, so a reader sees either the old or the new value.
type Snapshot[T any] struct {
	name        string
	load        func(ctx context.Context) (T, error)
	ttl         time.Duration
	negativeTTL time.Duration
	now         Clock

	cur   atomic.Pointer[entry[T]]
	group singleflight.Group
	loads atomic.Int64
}

func NewSnapshot[T any](name string, ttl, negativeTTL time.Duration, now Clock, load func(ctx context.Context) (T, error)) *Snapshot[T] {
	if now == nil {
		now = time.Now
	}
	if negativeTTL <= 0 {
		negativeTTL = ttl
	}
	return &Snapshot[T]{name: name, load: load, ttl: ttl, negativeTTL: negativeTTL, now: now}
}

// Get returns the cached value, loading it on first use or after an
// expired failure.
func (s *Snapshot[T]) Get(ctx context.Context) (T, error) {
	e := s.cur.Load()
	if e != nil {
		if s.now().Before(e.expiresAt) {
			return e.value, e.err
		}
		if e.ok {
			go s.refresh(context.WithoutCancel(ctx))
			return e.value, nil
		}
	}

	ch := s.group.DoChan(s.name, func() (any, error) {
		return s.reload(context.WithoutCancel(ctx)), nil
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		ne := res.Val.(*entry[T])
		return ne.value, ne.err
	}
}

// Peek returns the current value without triggering a load.
func (s *Snapshot[T]) Peek() (T, bool) {
	if e := s.cur.Load(); e != nil && e.ok {
		return e.value, true
	}
	var zero T
	return zero, false
}

func (s *Snapshot[T]) refresh(ctx context.Context) {
	s.group.Do(s.name, func() (any, error) {
		return s.reload(ctx), nil
	})
}

// reload runs under the single-flight key. A concurrent caller may have
// already replaced the entry, in which case the fresh one is reused.
func (s *Snapshot[T]) reload(ctx context.Context) *entry[T] {
	prev := s.cur.Load()
	if prev != nil && s.now().Before(prev.expiresAt) {
		return prev
	}

	s.loads.Add(1)
	value, err := s.load(ctx)
	now := s.now()

	var next *entry[T]
	switch {
	case err == nil:
		next = &entry[T]{value: value, ok: true, fetchedAt: now, expiresAt: now.Add(s.ttl)}
	case prev != nil && prev.ok:
		// keep serving the last good value, retry after the negative TTL
		logger.Warn(ctx, "Reference refresh failed, serving stale snapshot",
			"snapshot", s.name, "age", now.Sub(prev.fetchedAt).String(), "error", err)
		next = &entry[T]{value: prev.value, ok: true, fetchedAt: prev.fetchedAt, expiresAt: now.Add(s.negativeTTL)}
	default:
		logger.Warn(ctx, "Reference load failed", "snapshot", s.name, "error", err)
		next = &entry[T]{err: err, fetchedAt: now, expiresAt: now.Add(s.negativeTTL)}
	}
	s.cur.Store(next)
	return next
}

// Invalidate drops the cached entry; the next Get loads synchronously.
func (s *Snapshot[T]) Invalidate() {
	s.cur.Store(nil)
}

// Loads counts calls to the underlying loader.
func (s *Snapshot[T]) Loads() int64 {
	return s.loads.Load()
}

// FetchedAt reports when the served value was loaded.
func (s *Snapshot[T]) FetchedAt() (time.Time, bool) {
	if e := s.cur.Load(); e != nil && e.ok {
		return e.fetchedAt, true
	}
	return time.Time{}, false
}
