// Package domain defines the value types shared across the lead pipeline.
package domain

import "time"

// Source is the static descriptor of a content origin visited each cycle.
// Sources are immutable once loaded; registry order determines batch order.
type Source struct {
	// Name identifies the source in logs, leads and notifications.
	Name string
	// URL is the listing page visited on every cycle.
	URL string
	// ItemSelector is the CSS selector matching one candidate item.
	ItemSelector string
	// TextSelector selects the item text within an item node. Empty means
	// the item node's own text.
	TextSelector string
	// LinkSelector selects the anchor within an item node. Empty means the
	// first anchor, or the item node itself when it is an anchor.
	LinkSelector string
	// MaxItems caps how many items a single visit may yield.
	MaxItems int
	// Scroll marks sources whose listings load incrementally. Informational
	// for HTTP fetching; a renderer-backed fetcher may act on it.
	Scroll bool
	// RequiresLogin marks sources that only show full content to an
	// authenticated session.
	RequiresLogin bool
	// UserAgent overrides the fetcher's default user agent when set.
	UserAgent string
	// Headers are extra request headers, e.g. a session cookie for
	// RequiresLogin sources.
	Headers map[string]string
}

// RawItem is a single unfiltered text+URL pair extracted from a source.
// RawItems are transient; they are consumed by the pipeline and never stored.
type RawItem struct {
	Text      string
	SourceURL string
	// SourceName is the name of the source the item came from.
	SourceName string
}

// LeadCandidate is the caller-supplied portion of a lead. Identity and
// creation time are assigned by the store, never by the caller.
type LeadCandidate struct {
	Source    string
	Text      string
	SourceURL string
	Phones    []string
	Emails    []string
}

// Lead is the durable unit of value: a relevance-filtered, contact-annotated
// record derived from a RawItem.
type Lead struct {
	ID        string
	Source    string
	Text      string
	SourceURL string
	Phones    []string
	Emails    []string
	CreatedAt time.Time
	Notified  bool
}

// Contacts holds the phone numbers and email addresses found in a text.
type Contacts struct {
	Phones []string
	Emails []string
}

// Empty reports whether no contacts were found.
func (c Contacts) Empty() bool {
	return len(c.Phones) == 0 && len(c.Emails) == 0
}

// RunStatus is a point-in-time snapshot of the run loop, exposed to logs and
// the status API. It lives only in memory; a restart begins a fresh count.
type RunStatus struct {
	State               string    `json:"state"`
	Cycle               int64     `json:"cycle"`
	LastCycleStart      time.Time `json:"last_cycle_start"`
	LastCycleEnd        time.Time `json:"last_cycle_end"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalItems          int64     `json:"total_items"`
	TotalLeads          int64     `json:"total_leads"`
}
