// Package runloop drives the infinite crawl/pipeline/sleep cycle with
// backoff on fatal failure. The loop never terminates on its own; it stops
// only when its context is cancelled by process shutdown.
package runloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
	"github.com/jonesrussell/goleads/internal/scheduler"
)

// State is the run loop's lifecycle state.
type State int32

const (
	// StateIdle means the loop has not started a cycle yet.
	StateIdle State = iota
	// StateCrawling means a fetch session is live and sources are visited.
	StateCrawling
	// StatePipelining means crawled items are flowing through the pipeline.
	StatePipelining
	// StateSleeping means the loop is waiting for the next cycle.
	StateSleeping
	// StateBackingOff means a fatal error triggered the cooldown.
	StateBackingOff
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCrawling:
		return "crawling"
	case StatePipelining:
		return "pipelining"
	case StateSleeping:
		return "sleeping"
	case StateBackingOff:
		return "backing_off"
	default:
		return "unknown"
	}
}

// FetchSession is a live fetch session owned by one crawl phase.
type FetchSession interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error)
	Close() error
}

// SessionFactory acquires fetch sessions. Acquisition failure is the
// canonical fatal error driving the backoff state.
type SessionFactory interface {
	Acquire(ctx context.Context) (FetchSession, error)
}

// Pipeline processes one cycle's crawled items.
type Pipeline interface {
	Process(ctx context.Context, items []domain.RawItem) []domain.Lead
}

// Config holds run loop configuration.
type Config struct {
	// Interval is the sleep between cycles.
	Interval time.Duration
	// Schedule is an optional cron expression; when set, the next cycle
	// starts at the expression's next activation instead of Interval.
	Schedule string
	// Cooldown is the fixed wait after a fatal cycle error.
	Cooldown time.Duration
}

// Loop is the top-level control loop.
type Loop struct {
	cfg      Config
	sources  []domain.Source
	sessions SessionFactory
	sched    *scheduler.Scheduler
	pipe     Pipeline
	logger   logger.Logger

	state    atomic.Int32
	stats    Stats
	schedule cron.Schedule
	sleep    func(ctx context.Context, d time.Duration) bool
}

// Option customizes a Loop.
type Option func(*Loop)

// WithSleep replaces the wait function. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(l *Loop) { l.sleep = sleep }
}

// New creates a new Loop.
func New(
	cfg Config,
	srcs []domain.Source,
	sessions SessionFactory,
	sched *scheduler.Scheduler,
	pipe Pipeline,
	log logger.Logger,
	opts ...Option,
) (*Loop, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive, got %s", cfg.Cooldown)
	}

	l := &Loop{
		cfg:      cfg,
		sources:  srcs,
		sessions: sessions,
		sched:    sched,
		pipe:     pipe,
		logger:   log,
		sleep:    sleepContext,
	}

	if cfg.Schedule != "" {
		schedule, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
		}
		l.schedule = schedule
	}

	l.state.Store(int32(StateIdle))

	return l, nil
}

// Run drives cycles until ctx is cancelled. A fatal cycle error enters the
// backoff state, waits the fixed cooldown and resumes; the loop itself never
// gives up.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("run loop started",
		logger.Int("sources", len(l.sources)),
		logger.Duration("interval", l.cfg.Interval),
		logger.String("schedule", l.cfg.Schedule),
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := l.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			streak := l.stats.fail(time.Now())
			l.setState(StateBackingOff)
			l.logger.Error("cycle failed, backing off",
				logger.Error(err),
				logger.Int("consecutive_failures", streak),
				logger.Duration("cooldown", l.cfg.Cooldown),
			)

			if !l.sleep(ctx, l.cfg.Cooldown) {
				return ctx.Err()
			}
			continue
		}

		l.setState(StateSleeping)
		wait := l.nextWait(time.Now())
		l.logger.Info("cycle complete, sleeping", logger.Duration("wait", wait))

		if !l.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// RunOnce executes a single crawl+pipeline cycle. Any error or panic that
// escapes the per-source and per-item isolation is returned as the cycle's
// fatal error.
func (l *Loop) RunOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	cycle := l.stats.begin(time.Now())
	l.logger.Info("cycle started", logger.Int64("cycle", cycle))

	l.setState(StateCrawling)
	items, err := l.crawl(ctx)
	if err != nil {
		return err
	}

	l.setState(StatePipelining)
	leads := l.pipe.Process(ctx, items)

	l.stats.succeed(time.Now(), len(items), len(leads))
	// Zero new leads is a valid outcome, not an error.
	l.logger.Info("cycle finished",
		logger.Int64("cycle", cycle),
		logger.Int("items", len(items)),
		logger.Int("new_leads", len(leads)),
	)

	return nil
}

// crawl acquires a fetch session, runs the scheduler over the full registry
// and releases the session regardless of outcome.
func (l *Loop) crawl(ctx context.Context) ([]domain.RawItem, error) {
	session, err := l.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire fetch session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			l.logger.Warn("failed to close fetch session", logger.Error(closeErr))
		}
	}()

	return l.sched.Run(ctx, l.sources, session), nil
}

// nextWait returns how long to sleep before the next cycle.
func (l *Loop) nextWait(now time.Time) time.Duration {
	if l.schedule != nil {
		return l.schedule.Next(now).Sub(now)
	}
	return l.cfg.Interval
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Status returns a snapshot for logs and the status API.
func (l *Loop) Status() domain.RunStatus {
	cycle, lastStart, lastEnd, failures, items, leads := l.stats.snapshot()

	return domain.RunStatus{
		State:               l.State().String(),
		Cycle:               cycle,
		LastCycleStart:      lastStart,
		LastCycleEnd:        lastEnd,
		ConsecutiveFailures: failures,
		TotalItems:          items,
		TotalLeads:          leads,
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
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
