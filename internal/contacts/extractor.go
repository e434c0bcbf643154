// Package contacts extracts phone numbers and email addresses from free text.
package contacts

import (
	"regexp"

	"github.com/jonesrussell/goleads/internal/domain"
)

// Phone matching covers Kenyan mobile numbers: local trunk-prefixed
// (07XXXXXXXX, 01XXXXXXXX) and international (+2547XXXXXXXX, +2541XXXXXXXX).
var (
	phonePattern = regexp.MustCompile(`\+254[17]\d{8}|0[17]\d{8}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Extract pulls phone numbers and email addresses out of text. Matches are
// deduplicated preserving first occurrence. Empty or matchless input yields
// empty sets, never an error.
func Extract(text string) domain.Contacts {
	return domain.Contacts{
		Phones: dedupe(phonePattern.FindAllString(text, -1)),
		Emails: dedupe(emailPattern.FindAllString(text, -1)),
	}
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
