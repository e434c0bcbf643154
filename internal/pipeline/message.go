package pipeline

import (
	"fmt"
	"strings"

	"github.com/jonesrussell/goleads/internal/domain"
)

const (
	// maxExcerptLen bounds the text excerpt in a notification.
	maxExcerptLen = 200
	// ellipsis marks a truncated excerpt.
	ellipsis = "…"
	// noContactsMarker is shown when no phone or email was found.
	noContactsMarker = "none found"
)

// FormatMessage renders the human-readable notification for a lead.
func FormatMessage(lead *domain.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New lead from %s\n\n", lead.Source)
	fmt.Fprintf(&b, "%s\n\n", Excerpt(lead.Text, maxExcerptLen))

	if len(lead.Phones) > 0 {
		fmt.Fprintf(&b, "Phones: %s\n", strings.Join(lead.Phones, ", "))
	}
	if len(lead.Emails) > 0 {
		fmt.Fprintf(&b, "Emails: %s\n", strings.Join(lead.Emails, ", "))
	}
	if len(lead.Phones) == 0 && len(lead.Emails) == 0 {
		fmt.Fprintf(&b, "Contacts: %s\n", noContactsMarker)
	}

	fmt.Fprintf(&b, "\n%s\n", lead.SourceURL)
	fmt.Fprintf(&b, "Found: %s", lead.CreatedAt.Format("2006-01-02 15:04 MST"))

	return b.String()
}

// Excerpt truncates text to at most limit runes, appending an ellipsis when
// anything was cut.
func Excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + ellipsis
}
