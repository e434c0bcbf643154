// Package scheduler turns the source registry into a bounded-concurrency
// fetch plan: contiguous batches of sources fetched in parallel, with a
// randomized politeness delay between batches.
package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
)

// Fetcher is the consumed fetch capability. Implementations fail soft: a
// broken source returns an error (or zero items) and never blocks forever.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error)
}

// Config holds scheduler configuration.
type Config struct {
	// MaxConcurrency is the batch size: at most this many fetches run
	// simultaneously. Must be at least 1.
	MaxConcurrency int
	// BatchDelayMin/Max bound the randomized politeness delay between
	// batches. Both zero disables the delay.
	BatchDelayMin time.Duration
	BatchDelayMax time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.BatchDelayMin < 0 || c.BatchDelayMax < c.BatchDelayMin {
		return fmt.Errorf("invalid batch delay window [%s, %s]", c.BatchDelayMin, c.BatchDelayMax)
	}
	return nil
}

// Scheduler partitions the registry into batches and drives the fetches.
type Scheduler struct {
	cfg    Config
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) bool
	jitter func(min, max time.Duration) time.Duration
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithSleep replaces the delay function. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithJitter replaces the jitter function. Used by tests.
func WithJitter(jitter func(min, max time.Duration) time.Duration) Option {
	return func(s *Scheduler) { s.jitter = jitter }
}

// New creates a new Scheduler.
func New(cfg Config, log logger.Logger, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	s := &Scheduler{
		cfg:    cfg,
		logger: log,
		sleep:  sleepContext,
		jitter: Jitter,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run fetches every source once, in contiguous batches of MaxConcurrency.
// Within a batch the fetches run concurrently; the batch fans in completely
// before the next one starts. Results preserve registry order regardless of
// completion order. A failing source yields zero items and is logged; it
// never aborts sibling fetches or subsequent batches.
func (s *Scheduler) Run(ctx context.Context, srcs []domain.Source, f Fetcher) []domain.RawItem {
	var all []domain.RawItem

	for start := 0; start < len(srcs); start += s.cfg.MaxConcurrency {
		if ctx.Err() != nil {
			break
		}

		end := min(start+s.cfg.MaxConcurrency, len(srcs))
		batch := srcs[start:end]

		all = append(all, s.runBatch(ctx, batch, f)...)

		if end < len(srcs) {
			delay := s.jitter(s.cfg.BatchDelayMin, s.cfg.BatchDelayMax)
			if !s.sleep(ctx, delay) {
				break
			}
		}
	}

	return all
}

// runBatch fetches one batch concurrently and merges results positionally.
func (s *Scheduler) runBatch(ctx context.Context, batch []domain.Source, f Fetcher) []domain.RawItem {
	results := make([][]domain.RawItem, len(batch))

	var wg sync.WaitGroup
	for i, src := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.fetchOne(ctx, src, f)
		}()
	}
	wg.Wait()

	var merged []domain.RawItem
	for _, items := range results {
		merged = append(merged, items...)
	}

	return merged
}

// fetchOne fetches a single source, isolating failures. A panicking fetch
// must not take down sibling fetches.
func (s *Scheduler) fetchOne(ctx context.Context, src domain.Source, f Fetcher) (items []domain.RawItem) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fetch panicked",
				logger.String("source", src.Name),
				logger.Any("panic", r),
			)
			items = nil
		}
	}()

	items, err := f.Fetch(ctx, src)
	if err != nil {
		s.logger.Warn("source fetch failed",
			logger.String("source", src.Name),
			logger.String("url", src.URL),
			logger.Error(err),
		)
		return nil
	}

	s.logger.Info("source fetched",
		logger.String("source", src.Name),
		logger.Int("items", len(items)),
	)

	return items
}

// Jitter returns a duration uniformly distributed within [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// sleepContext waits for d, returning false if ctx was cancelled first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
