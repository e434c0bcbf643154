package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
	"github.com/jonesrussell/goleads/internal/scheduler"
)

// fakeFetcher records call concurrency and returns canned results per source.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string][]domain.RawItem
	errs    map[string]error
	panics  map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	delay time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:   make(map[string]int),
		results: make(map[string][]domain.RawItem),
		errs:    make(map[string]error),
		panics:  make(map[string]bool),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, src domain.Source) ([]domain.RawItem, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	// Track the high-water mark of simultaneous fetches.
	for {
		maxSeen := f.maxInFlight.Load()
		if current <= maxSeen || f.maxInFlight.CompareAndSwap(maxSeen, current) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls[src.Name]++
	f.mu.Unlock()

	if f.panics[src.Name] {
		panic("fetcher exploded")
	}
	if err := f.errs[src.Name]; err != nil {
		return nil, err
	}
	return f.results[src.Name], nil
}

func makeSources(n int) []domain.Source {
	srcs := make([]domain.Source, 0, n)
	for i := range n {
		srcs = append(srcs, domain.Source{
			Name:         fmt.Sprintf("source-%d", i),
			URL:          fmt.Sprintf("https://s%d.example.com", i),
			ItemSelector: "div",
			MaxItems:     5,
		})
	}
	return srcs
}

func newScheduler(t *testing.T, maxConcurrency int) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.New(scheduler.Config{MaxConcurrency: maxConcurrency}, logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := scheduler.New(scheduler.Config{MaxConcurrency: 0}, logger.NewNop())
	assert.Error(t, err)

	_, err = scheduler.New(scheduler.Config{
		MaxConcurrency: 1,
		BatchDelayMin:  2 * time.Second,
		BatchDelayMax:  time.Second,
	}, logger.NewNop())
	assert.Error(t, err)
}

func TestRunInvokesEverySourceExactlyOnce(t *testing.T) {
	srcs := makeSources(7)
	fetch := newFakeFetcher()

	newScheduler(t, 3).Run(context.Background(), srcs, fetch)

	require.Len(t, fetch.calls, 7)
	for _, src := range srcs {
		assert.Equal(t, 1, fetch.calls[src.Name])
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const k = 3

	srcs := makeSources(10)
	fetch := newFakeFetcher()
	fetch.delay = 20 * time.Millisecond

	newScheduler(t, k).Run(context.Background(), srcs, fetch)

	assert.LessOrEqual(t, fetch.maxInFlight.Load(), int32(k),
		"no more than k fetches may run simultaneously")
	assert.Len(t, fetch.calls, 10)
}

func TestRunPreservesRegistryOrder(t *testing.T) {
	srcs := makeSources(5)
	fetch := newFakeFetcher()
	for i, src := range srcs {
		fetch.results[src.Name] = []domain.RawItem{
			{Text: fmt.Sprintf("item-%d", i), SourceURL: fmt.Sprintf("u%d", i), SourceName: src.Name},
		}
	}
	// Stagger completion so order cannot come from completion time.
	fetch.delay = 5 * time.Millisecond

	items := newScheduler(t, 2).Run(context.Background(), srcs, fetch)

	require.Len(t, items, 5)
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("item-%d", i), item.Text)
	}
}

func TestRunIsolatesFailingSource(t *testing.T) {
	srcs := makeSources(4)
	fetch := newFakeFetcher()
	for _, src := range srcs {
		fetch.results[src.Name] = []domain.RawItem{{Text: "ok", SourceURL: src.URL}}
	}
	fetch.errs["source-1"] = errors.New("timeout waiting for content")

	items := newScheduler(t, 2).Run(context.Background(), srcs, fetch)

	assert.Len(t, items, 3, "other sources still produce their items")
	assert.Equal(t, 1, fetch.calls["source-2"], "later batches still run")
	assert.Equal(t, 1, fetch.calls["source-3"])
}

func TestRunIsolatesPanickingSource(t *testing.T) {
	srcs := makeSources(3)
	fetch := newFakeFetcher()
	for _, src := range srcs {
		fetch.results[src.Name] = []domain.RawItem{{Text: "ok", SourceURL: src.URL}}
	}
	fetch.panics["source-0"] = true

	items := newScheduler(t, 3).Run(context.Background(), srcs, fetch)

	assert.Len(t, items, 2)
}

func TestRunAppliesBatchDelayBetweenBatches(t *testing.T) {
	srcs := makeSources(6)
	fetch := newFakeFetcher()

	var delays []time.Duration
	s, err := scheduler.New(
		scheduler.Config{
			MaxConcurrency: 2,
			BatchDelayMin:  10 * time.Millisecond,
			BatchDelayMax:  20 * time.Millisecond,
		},
		logger.NewNop(),
		scheduler.WithSleep(func(_ context.Context, d time.Duration) bool {
			delays = append(delays, d)
			return true
		}),
	)
	require.NoError(t, err)

	s.Run(context.Background(), srcs, fetch)

	// Three batches of two, so two inter-batch delays; none after the last.
	require.Len(t, delays, 2)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	srcs := makeSources(6)
	fetch := newFakeFetcher()

	ctx, cancel := context.WithCancel(context.Background())

	s, err := scheduler.New(
		scheduler.Config{MaxConcurrency: 2, BatchDelayMin: time.Millisecond, BatchDelayMax: 2 * time.Millisecond},
		logger.NewNop(),
		scheduler.WithSleep(func(ctx context.Context, _ time.Duration) bool {
			cancel()
			return ctx.Err() == nil
		}),
	)
	require.NoError(t, err)

	s.Run(ctx, srcs, fetch)

	assert.Len(t, fetch.calls, 2, "no batches start after cancellation")
}

func TestJitterWithinWindow(t *testing.T) {
	for range 100 {
		d := scheduler.Jitter(10*time.Millisecond, 30*time.Millisecond)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 30*time.Millisecond)
	}

	assert.Equal(t, 5*time.Millisecond, scheduler.Jitter(5*time.Millisecond, 5*time.Millisecond))
	assert.Equal(t, time.Duration(0), scheduler.Jitter(0, 0))
}
