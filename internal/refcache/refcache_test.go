package refcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-pretrade/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSnapshotCachesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	s := NewSnapshot("n", time.Hour, time.Minute, clock.Now, func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})

	v, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Minute)
	v, err = s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.EqualValues(t, 1, s.Loads())
}

func TestSnapshotServesStaleWhileRefreshing(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	var calls atomic.Int32
	s := NewSnapshot("n", time.Hour, time.Minute, clock.Now, func(ctx context.Context) (int, error) {
		n := calls.Add(1)
		if n > 1 {
			<-release
		}
		return int(n), nil
	})

	v, err := s.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	clock.Advance(2 * time.Hour)

	// The refresh is blocked; readers must still get the old value at once.
	for i := 0; i < 5; i++ {
		v, err = s.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}

	close(release)
	assert.Eventually(t, func() bool {
		v, _ := s.Peek()
		return v == 2
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, s.Loads())
}

func TestSnapshotConcurrentFirstLoadIsSingleFlight(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	start := make(chan struct{})
	s := NewSnapshot("n", time.Hour, time.Minute, clock.Now, func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-start
		return "ready", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "ready", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, calls.Load())
}

func TestSnapshotNegativeCaching(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	boom := errors.New("boom")
	s := NewSnapshot("n", time.Hour, time.Minute, clock.Now, func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, boom
		}
		return 7, nil
	})

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = s.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, calls.Load())

	clock.Advance(2 * time.Minute)
	v, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSnapshotKeepsLastGoodValueOnRefreshFailure(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	s := NewSnapshot("n", time.Hour, time.Minute, clock.Now, func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 1, nil
		}
		return 0, errors.New("upstream down")
	})

	_, err := s.Get(context.Background())
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	v, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	v, err = s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

type fakeBoards struct {
	calls atomic.Int32
	data  map[string]types.BoardSnapshot
	fail  map[string]bool
}

func (f *fakeBoards) BoardSecurities(ctx context.Context, board string) (types.BoardSnapshot, error) {
	f.calls.Add(1)
	if f.fail[board] {
		return types.BoardSnapshot{}, errors.New("board down")
	}
	return f.data[board], nil
}

func TestBoardsLookupOrderAndIsolation(t *testing.T) {
	src := &fakeBoards{
		data: map[string]types.BoardSnapshot{
			"tqob": {Board: "tqob", Rows: map[string]types.Attrs{"SU26238RMFS4": {"SECID": "SU26238RMFS4"}}},
			"tqcb": {Board: "tqcb", Rows: map[string]types.Attrs{
				"SU26238RMFS4": {"SECID": "SHOULD-NOT-WIN"},
				"RU000A105KN5": {"SECID": "RU000A105KN5"},
			}},
		},
	}
	b := NewBoards(src, []string{"TQOB", "tqcb", "tqob"}, time.Hour, time.Minute, newFakeClock().Now)
	assert.Equal(t, []string{"tqob", "tqcb"}, b.Names())

	b.Warm(context.Background())
	assert.EqualValues(t, 2, src.calls.Load())

	row, board, ok := b.Lookup(context.Background(), "SU26238RMFS4")
	require.True(t, ok)
	assert.Equal(t, "tqob", board)
	assert.Equal(t, "SU26238RMFS4", row["SECID"])

	_, board, ok = b.Lookup(context.Background(), "RU000A105KN5")
	require.True(t, ok)
	assert.Equal(t, "tqcb", board)

	_, _, ok = b.Lookup(context.Background(), "US0378331005")
	assert.False(t, ok)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestBoardsFailedBoardIsSkipped(t *testing.T) {
	src := &fakeBoards{
		data: map[string]types.BoardSnapshot{
			"tqcb": {Board: "tqcb", Rows: map[string]types.Attrs{"RU000A105KN5": {"SECID": "RU000A105KN5"}}},
		},
		fail: map[string]bool{"tqob": true},
	}
	b := NewBoards(src, []string{"tqob", "tqcb"}, time.Hour, time.Minute, newFakeClock().Now)
	b.Warm(context.Background())

	_, board, ok := b.Lookup(context.Background(), "RU000A105KN5")
	require.True(t, ok)
	assert.Equal(t, "tqcb", board)
}

func TestIssuersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuers.csv")
	csv := "\xef\xbb\xbf Issuer , EMITTER_ID\nМинфин России,1045\nIssuer A,1234.0\n,99\nDup,1045\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	iss := NewIssuers(nil, path, time.Hour, time.Minute, newFakeClock().Now)
	name, ok := iss.Name(context.Background(), "1045")
	require.True(t, ok)
	assert.Equal(t, "Минфин России", name)

	name, ok = iss.Name(context.Background(), "1234")
	require.True(t, ok)
	assert.Equal(t, "Issuer A", name)

	_, ok = iss.Name(context.Background(), "99")
	assert.False(t, ok)
}

func TestNilIssuers(t *testing.T) {
	var iss *Issuers = NewIssuers(nil, "", time.Hour, time.Minute, nil)
	_, ok := iss.Name(context.Background(), "1")
	assert.False(t, ok)
	iss.Warm(context.Background())
}
