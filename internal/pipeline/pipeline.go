// Package pipeline turns raw crawled items into persisted, notified leads:
// dedupe check, relevance filter, contact extraction, persist, notify.
package pipeline

import (
	"context"
	"time"

	"github.com/jonesrussell/goleads/internal/contacts"
	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
	"github.com/jonesrussell/goleads/internal/relevance"
	"github.com/jonesrussell/goleads/internal/scheduler"
)

// DedupeStore tracks which source URLs have already been evaluated.
type DedupeStore interface {
	// CheckAndMark atomically claims url, returning true on first sight.
	CheckAndMark(ctx context.Context, url string) (bool, error)
}

// LeadStore persists accepted leads.
type LeadStore interface {
	// Save assigns identity and timestamp and appends the lead durably.
	Save(ctx context.Context, c domain.LeadCandidate) (*domain.Lead, error)
	// MarkNotified records a delivered notification.
	MarkNotified(ctx context.Context, id string) error
}

// Notifier delivers a formatted lead message.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Config holds pipeline configuration.
type Config struct {
	// NotifyDelayMin/Max bound the randomized spacing between outbound
	// notifications. Both zero disables the spacing.
	NotifyDelayMin time.Duration
	NotifyDelayMax time.Duration
}

// Pipeline processes raw items strictly in input order.
type Pipeline struct {
	cfg      Config
	dedupe   DedupeStore
	leads    LeadStore
	filter   *relevance.Filter
	notifier Notifier
	logger   logger.Logger
	sleep    func(ctx context.Context, d time.Duration) bool
	jitter   func(min, max time.Duration) time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSleep replaces the delay function. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// New creates a new Pipeline.
func New(
	cfg Config,
	dedupe DedupeStore,
	leads LeadStore,
	filter *relevance.Filter,
	notifier Notifier,
	log logger.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		dedupe:   dedupe,
		leads:    leads,
		filter:   filter,
		notifier: notifier,
		logger:   log,
		sleep:    sleepContext,
		jitter:   scheduler.Jitter,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process runs every item through dedupe, relevance, contact extraction,
// persistence and notification, and returns the leads created in this
// invocation. A store error drops the item for this cycle and is logged; a
// send failure is logged and never stops the remaining leads.
func (p *Pipeline) Process(ctx context.Context, items []domain.RawItem) []domain.Lead {
	var created []domain.Lead

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		lead := p.processItem(ctx, item)
		if lead == nil {
			continue
		}

		p.notify(ctx, lead)
		created = append(created, *lead)

		// Space out sends to respect outbound rate limits, success or not.
		if !p.sleep(ctx, p.jitter(p.cfg.NotifyDelayMin, p.cfg.NotifyDelayMax)) {
			break
		}
	}

	return created
}

// processItem runs one item up to and including persistence. It returns nil
// when the item was skipped or dropped.
func (p *Pipeline) processItem(ctx context.Context, item domain.RawItem) *domain.Lead {
	first, err := p.dedupe.CheckAndMark(ctx, item.SourceURL)
	if err != nil {
		p.logger.Error("dedupe check failed, dropping item for this cycle",
			logger.String("url", item.SourceURL),
			logger.Error(err),
		)
		return nil
	}
	if !first {
		return nil
	}

	// Irrelevant items keep their dedupe mark so they are never re-evaluated.
	if !p.filter.IsRelevant(item.Text) {
		return nil
	}

	found := contacts.Extract(item.Text)

	lead, err := p.leads.Save(ctx, domain.LeadCandidate{
		Source:    item.SourceName,
		Text:      item.Text,
		SourceURL: item.SourceURL,
		Phones:    found.Phones,
		Emails:    found.Emails,
	})
	if err != nil {
		p.logger.Error("failed to persist lead, dropping item for this cycle",
			logger.String("url", item.SourceURL),
			logger.Error(err),
		)
		return nil
	}

	p.logger.Info("lead created",
		logger.String("id", lead.ID),
		logger.String("source", lead.Source),
		logger.String("url", lead.SourceURL),
		logger.Int("phones", len(lead.Phones)),
		logger.Int("emails", len(lead.Emails)),
	)

	return lead
}

// notify formats and sends the lead's notification.
func (p *Pipeline) notify(ctx context.Context, lead *domain.Lead) {
	if err := p.notifier.Send(ctx, FormatMessage(lead)); err != nil {
		p.logger.Warn("notification failed",
			logger.String("lead_id", lead.ID),
			logger.Error(err),
		)
		return
	}

	lead.Notified = true
	if err := p.leads.MarkNotified(ctx, lead.ID); err != nil {
		p.logger.Error("failed to mark lead notified",
			logger.String("lead_id", lead.ID),
			logger.Error(err),
		)
	}
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
