// Package fetcher implements the HTTP fetch capability: given a source
// configuration, it visits the source's listing page and extracts candidate
// text/link items with the source's CSS selectors.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/goleads/internal/domain"
	"github.com/jonesrussell/goleads/internal/logger"
)

// DefaultUserAgent identifies the crawler to upstream sources.
const DefaultUserAgent = "goleads/1.0 (+https://github.com/jonesrussell/goleads)"

// Config holds fetcher configuration.
type Config struct {
	// Timeout bounds a single source visit, covering the request and the
	// response body read.
	Timeout time.Duration
	// UserAgent overrides DefaultUserAgent when set.
	UserAgent string
}

// Client creates fetch sessions. One session is acquired per crawl cycle and
// released when the cycle's crawl phase ends.
type Client struct {
	cfg    Config
	logger logger.Logger
}

// NewClient creates a new fetch client.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{cfg: cfg, logger: log}
}

// Acquire opens a fetch session. The session owns an HTTP transport shared
// by all concurrent fetches of the cycle and fully released on Close.
func (c *Client) Acquire(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to acquire fetch session: %w", err)
	}

	return &Session{
		cfg:       c.cfg,
		logger:    c.logger,
		transport: http.DefaultTransport.(*http.Transport).Clone(),
	}, nil
}

// Session is a live fetch session backing one crawl cycle.
type Session struct {
	cfg       Config
	logger    logger.Logger
	transport *http.Transport
}

// Fetch visits the source's listing page and returns up to src.MaxItems raw
// items in page order. A timeout, selector miss or extraction fault yields an
// error or an empty slice; it never panics past this boundary.
func (s *Session) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	userAgent := s.cfg.UserAgent
	if src.UserAgent != "" {
		userAgent = src.UserAgent
	}

	collector := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.MaxDepth(1),
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(s.cfg.Timeout)
	collector.WithTransport(s.transport)

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range src.Headers {
			r.Headers.Set(k, v)
		}
	})

	var items []domain.RawItem
	collector.OnHTML(src.ItemSelector, func(e *colly.HTMLElement) {
		if len(items) >= src.MaxItems {
			return
		}

		text := itemText(e.DOM, src)
		link := itemLink(e, src)
		if text == "" || link == "" {
			return
		}

		items = append(items, domain.RawItem{
			Text:       text,
			SourceURL:  link,
			SourceName: src.Name,
		})
	})

	var fetchErr error
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(src.URL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", src.URL, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.URL, fetchErr)
	}

	s.logger.Debug("source fetched",
		logger.String("source", src.Name),
		logger.Int("items", len(items)),
	)

	return items, nil
}

// Close releases the session's network resources.
func (s *Session) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

// itemText extracts the item's text, whitespace-normalized.
func itemText(sel *goquery.Selection, src domain.Source) string {
	text := sel.Text()
	if src.TextSelector != "" {
		text = sel.Find(src.TextSelector).Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

// itemLink resolves the item's permalink to an absolute URL. Items without a
// resolvable link are dropped; the dedupe ledger is keyed on the link.
func itemLink(e *colly.HTMLElement, src domain.Source) string {
	var href string

	switch {
	case src.LinkSelector != "":
		href, _ = e.DOM.Find(src.LinkSelector).First().Attr("href")
	case goquery.NodeName(e.DOM) == "a":
		href, _ = e.DOM.Attr("href")
	default:
		href, _ = e.DOM.Find("a").First().Attr("href")
	}

	if href == "" {
		return ""
	}

	return e.Request.AbsoluteURL(href)
}
