package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
	"github.com/jonesrussell/goleads/internal/pipeline"
	"github.com/jonesrussell/goleads/internal/relevance"
)

// fakeDedupe is an in-memory dedupe ledger.
type fakeDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDedupe() *fakeDedupe {
	return &fakeDedupe{seen: make(map[string]bool)}
}

func (f *fakeDedupe) CheckAndMark(_ context.Context, url string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[url] {
		return false, nil
	}
	f.seen[url] = true
	return true, nil
}

// fakeLeadStore appends leads in memory.
type fakeLeadStore struct {
	mu       sync.Mutex
	saved    []domain.Lead
	notified []string
	saveErr  error
}

func (f *fakeLeadStore) Save(_ context.Context, c domain.LeadCandidate) (*domain.Lead, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lead := domain.Lead{
		ID:        uuid.NewString(),
		Source:    c.Source,
		Text:      c.Text,
		SourceURL: c.SourceURL,
		Phones:    c.Phones,
		Emails:    c.Emails,
		CreatedAt: time.Now().UTC(),
	}
	f.saved = append(f.saved, lead)
	return &lead, nil
}

func (f *fakeLeadStore) MarkNotified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notified = append(f.notified, id)
	return nil
}

// fakeNotifier records sent messages.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Send(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, message)
	return f.err
}

func testFilter() *relevance.Filter {
	return relevance.New([]string{"cyber"}, []string{"repair"})
}

func newPipeline(dedupe *fakeDedupe, leads *fakeLeadStore, notifier *fakeNotifier) *pipeline.Pipeline {
	return pipeline.New(
		pipeline.Config{},
		dedupe,
		leads,
		testFilter(),
		notifier,
		logger.NewNop(),
	)
}

func TestProcessCreatesLeadForRelevantItem(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}

	created := newPipeline(dedupe, leads, notifier).Process(context.Background(), []domain.RawItem{
		{
			Text:       "cybercafe services, call 0712345678 or email info@cyber.ke",
			SourceURL:  "https://board.example.com/p/1",
			SourceName: "community-board",
		},
	})

	require.Len(t, created, 1)
	lead := created[0]
	assert.Equal(t, "community-board", lead.Source)
	assert.Equal(t, []string{"0712345678"}, lead.Phones)
	assert.Equal(t, []string{"info@cyber.ke"}, lead.Emails)
	assert.True(t, lead.Notified)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "community-board")
	assert.Contains(t, notifier.messages[0], "0712345678")
	assert.Contains(t, notifier.messages[0], "https://board.example.com/p/1")

	require.Len(t, leads.notified, 1)
	assert.Equal(t, lead.ID, leads.notified[0])
}

func TestProcessDedupeIdempotence(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}
	p := newPipeline(dedupe, leads, notifier)

	item := domain.RawItem{
		Text:       "cybercafe opening",
		SourceURL:  "https://board.example.com/p/1",
		SourceName: "community-board",
	}

	first := p.Process(context.Background(), []domain.RawItem{item})
	second := p.Process(context.Background(), []domain.RawItem{item})

	assert.Len(t, first, 1)
	assert.Empty(t, second, "same URL yields exactly one lead across cycles")
	assert.Len(t, leads.saved, 1)
	assert.Len(t, notifier.messages, 1)
}

func TestProcessIrrelevantItemStaysMarked(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}
	p := newPipeline(dedupe, leads, notifier)

	item := domain.RawItem{
		Text:       "fresh vegetables delivered",
		SourceURL:  "https://board.example.com/p/2",
		SourceName: "community-board",
	}

	created := p.Process(context.Background(), []domain.RawItem{item})
	assert.Empty(t, created)
	assert.True(t, dedupe.seen[item.SourceURL],
		"irrelevant items are marked processed and never re-evaluated")

	// A later cycle with relevant text at the same URL is still skipped.
	item.Text = "cybercafe now open"
	created = p.Process(context.Background(), []domain.RawItem{item})
	assert.Empty(t, created)
}

func TestProcessEndToEndScenario(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}
	p := newPipeline(dedupe, leads, notifier)

	created := p.Process(context.Background(), []domain.RawItem{
		{Text: "cybercafe services available", SourceURL: "u1", SourceName: "a"},
		{Text: "laptop repair shop", SourceURL: "u2", SourceName: "b"},
	})

	require.Len(t, created, 1, "exactly one lead is persisted")
	assert.Equal(t, "u1", created[0].SourceURL)
	assert.Len(t, notifier.messages, 1, "exactly one notification attempt")
	assert.True(t, dedupe.seen["u1"])
	assert.True(t, dedupe.seen["u2"], "excluded items still land in the processed set")
}

func TestProcessContinuesAfterNotifyFailure(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{err: errors.New("telegram unavailable")}
	p := newPipeline(dedupe, leads, notifier)

	created := p.Process(context.Background(), []domain.RawItem{
		{Text: "cyber one", SourceURL: "u1", SourceName: "a"},
		{Text: "cyber two", SourceURL: "u2", SourceName: "a"},
	})

	require.Len(t, created, 2, "send failure never stops the remaining leads")
	assert.Len(t, notifier.messages, 2)
	assert.False(t, created[0].Notified)
	assert.Empty(t, leads.notified)
}

func TestProcessContinuesAfterStoreFailure(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{saveErr: errors.New("disk full")}
	notifier := &fakeNotifier{}
	p := newPipeline(dedupe, leads, notifier)

	created := p.Process(context.Background(), []domain.RawItem{
		{Text: "cyber one", SourceURL: "u1", SourceName: "a"},
	})

	assert.Empty(t, created, "the failed item is dropped for this cycle")
	assert.Empty(t, notifier.messages, "unpersisted leads are never notified")
}

func TestProcessDedupeErrorDropsOnlyThatItem(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}
	p := newPipeline(dedupe, leads, notifier)

	dedupe.err = errors.New("ledger unavailable")
	created := p.Process(context.Background(), []domain.RawItem{
		{Text: "cyber one", SourceURL: "u1", SourceName: "a"},
	})
	assert.Empty(t, created)

	// Once the ledger recovers the URL is still claimable: it was never marked.
	dedupe.err = nil
	created = p.Process(context.Background(), []domain.RawItem{
		{Text: "cyber one", SourceURL: "u1", SourceName: "a"},
	})
	assert.Len(t, created, 1)
}

func TestProcessSpacesNotifications(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}

	var delays []time.Duration
	p := pipeline.New(
		pipeline.Config{NotifyDelayMin: 10 * time.Millisecond, NotifyDelayMax: 20 * time.Millisecond},
		dedupe,
		leads,
		testFilter(),
		notifier,
		logger.NewNop(),
		pipeline.WithSleep(func(_ context.Context, d time.Duration) bool {
			delays = append(delays, d)
			return true
		}),
	)

	items := make([]domain.RawItem, 0, 3)
	for i := range 3 {
		items = append(items, domain.RawItem{
			Text:       "cyber services",
			SourceURL:  fmt.Sprintf("u%d", i),
			SourceName: "a",
		})
	}

	p.Process(context.Background(), items)

	require.Len(t, delays, 3, "every notified lead is followed by a spacing delay")
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
}

func TestProcessPreservesInputOrder(t *testing.T) {
	dedupe := newFakeDedupe()
	leads := &fakeLeadStore{}
	notifier := &fakeNotifier{}
	p := newPipeline(dedupe, leads, notifier)

	items := []domain.RawItem{
		{Text: "cyber alpha", SourceURL: "u1", SourceName: "a"},
		{Text: "cyber beta", SourceURL: "u2", SourceName: "a"},
		{Text: "cyber gamma", SourceURL: "u3", SourceName: "a"},
	}

	created := p.Process(context.Background(), items)

	require.Len(t, created, 3)
	assert.Equal(t, "u1", created[0].SourceURL)
	assert.Equal(t, "u2", created[1].SourceURL)
	assert.Equal(t, "u3", created[2].SourceURL)
}
