package source

import "strings"

// Filter keeps feed entries whose text mentions the query terms.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter from include and exclude keywords.
func NewFilter(keywords, exclude []string) *Filter {
	f := &Filter{}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	for _, kw := range exclude {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.exclude = append(f.exclude, kw)
		}
	}
	return f
}

// QueryFilter builds a filter from the words of a query plus exclusions.
func QueryFilter(query string, exclude []string) *Filter {
	return NewFilter(strings.Fields(query), exclude)
}

// Matches returns true if text contains any keyword and no excluded keyword.
// A filter without keywords matches everything not excluded.
func (f *Filter) Matches(text string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	if len(f.keywords) == 0 {
		return true
	}
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
