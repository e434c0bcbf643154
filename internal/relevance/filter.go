// Package relevance classifies extracted text as lead-worthy using
// include/exclude keyword sets.
package relevance

import "strings"

// DefaultInclude is the built-in set of keywords that mark a text as a
// candidate lead. Matching is case-insensitive substring matching.
var DefaultInclude = []string{
	"cyber",
	"cybercafe",
	"printing",
	"photocopy",
	"typing",
	"lamination",
	"passport photo",
	"ecitizen",
	"kra pin",
	"bureau services",
}

// DefaultExclude is the built-in set of keywords that disqualify a text no
// matter how many include keywords also match.
var DefaultExclude = []string{
	"repair",
	"for sale",
	"vacancy",
	"hiring",
	"tender",
	"wanted to buy",
}

// Filter classifies text using lowercased include and exclude keyword sets.
// Exclusion always wins over inclusion. The zero value matches nothing; use
// New or NewDefault.
type Filter struct {
	include []string
	exclude []string
}

// New creates a Filter from the given keyword sets. Empty sets fall back to
// the built-in defaults.
func New(include, exclude []string) *Filter {
	if len(include) == 0 {
		include = DefaultInclude
	}
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}
	return &Filter{
		include: lowerAll(include),
		exclude: lowerAll(exclude),
	}
}

// NewDefault creates a Filter with the built-in keyword sets.
func NewDefault() *Filter {
	return New(nil, nil)
}

// IsRelevant reports whether text is a candidate lead. Empty text is never
// relevant. Any exclude match returns false immediately; otherwise the text
// is relevant iff at least one include keyword matches.
func (f *Filter) IsRelevant(text string) bool {
	if text == "" {
		return false
	}

	lowered := strings.ToLower(text)

	for _, kw := range f.exclude {
		if strings.Contains(lowered, kw) {
			return false
		}
	}

	for _, kw := range f.include {
		if strings.Contains(lowered, kw) {
			return true
		}
	}

	return false
}

func lowerAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
