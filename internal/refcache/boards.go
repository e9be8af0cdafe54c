package refcache

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/types"
)

// BoardSource fetches one board's listing.
type BoardSource interface {
	BoardSecurities(ctx context.Context, board string) (types.BoardSnapshot, error)
}

// Boards keeps one independently cached snapshot per trading board and
// looks identifiers up in board order.
type Boards struct {
	order []string
	snaps map[string]*Snapshot[types.BoardSnapshot]
}

func NewBoards(src BoardSource, boards []string, ttl, negativeTTL time.Duration, now Clock) *Boards {
	b := &Boards{snaps: make(map[string]*Snapshot[types.BoardSnapshot], len(boards))}
	for _, name := range boards {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || b.snaps[name] != nil {
			continue
		}
		board := name
		b.order = append(b.order, board)
		b.snaps[board] = NewSnapshot("board:"+board, ttl, negativeTTL, now,
			func(ctx context.Context) (types.BoardSnapshot, error) {
				return src.BoardSecurities(ctx, board)
			})
	}
	return b
}

// Warm loads every board concurrently. Failures are logged and cached
// negatively; lookups then simply miss on that board.
func (b *Boards) Warm(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range b.order {
		snap := b.snaps[name]
		board := name
		g.Go(func() error {
			s, err := snap.Get(gctx)
			if err != nil {
				logger.Warn(gctx, "Board snapshot unavailable", "board", board, "error", err)
				return nil
			}
			logger.Debug(gctx, "Board snapshot ready", "board", board, "rows", len(s.Rows))
			return nil
		})
	}
	_ = g.Wait()
}

// Lookup returns the first board row listing isin.
func (b *Boards) Lookup(ctx context.Context, isin string) (types.Attrs, string, bool) {
	for _, name := range b.order {
		snap, err := b.snaps[name].Get(ctx)
		if err != nil {
			continue
		}
		if row, ok := snap.Lookup(isin); ok {
			return row, name, true
		}
	}
	return nil, "", false
}

func (b *Boards) Names() []string {
	return append([]string(nil), b.order...)
}

// Loads sums loader calls across boards.
func (b *Boards) Loads() int64 {
	var n int64
	for _, s := range b.snaps {
		n += s.Loads()
	}
	return n
}
