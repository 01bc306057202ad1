package trend

import (
	"sort"
	"strings"
)

// IntentType is the inferred focus of a search query.
type IntentType string

const (
	IntentGeneral          IntentType = "general"
	IntentSpecificLanguage IntentType = "specific_language"
	IntentSpecificRegion   IntentType = "specific_region"
)

// Regional preference multipliers.
const (
	multiplierGeneral          = 1.5
	multiplierLanguageMatch    = 0.8
	multiplierLanguageMismatch = 0.3
	multiplierRegion           = 1.0
)

// languageIntent maps query keywords to the language they ask for.
var languageIntent = map[string][]string{
	"de": {"deutsch", "german", "auf deutsch", "german language"},
	"en": {"english", "in english"},
	"fr": {"français", "french", "en français"},
	"es": {"español", "spanish", "en español"},
	"it": {"italiano", "italian"},
	"nl": {"nederlands", "dutch"},
	"hi": {"hindi", "bollywood", "desi"},
	"id": {"indonesian", "bahasa", "lagu", "dangdut"},
}

// regionIntent maps query keywords to the region they ask for.
var regionIntent = map[string][]string{
	"DE": {"deutschland", "germany"},
	"AT": {"österreich", "austria"},
	"CH": {"schweiz", "switzerland", "suisse"},
	"US": {"usa", "america", "united states"},
	"GB": {"uk", "britain", "england", "united kingdom"},
	"FR": {"france"},
	"ES": {"españa", "spain"},
	"IT": {"italia", "italy"},
	"NL": {"nederland", "netherlands", "holland"},
	"IN": {"india"},
	"ID": {"indonesia"},
}

// SearchContext is what the query says about the wanted language and region.
type SearchContext struct {
	Query          string     `json:"query"`
	Region         string     `json:"region"`
	TargetLanguage string     `json:"target_language"`
	Intent         IntentType `json:"intent"`
	IntentLanguage string     `json:"intent_language,omitempty"`
	IntentRegion   string     `json:"intent_region,omitempty"`
	Multiplier     float64    `json:"multiplier"`
}

// ContextAnalyzer infers the search context of a query.
type ContextAnalyzer struct {
	registry *Registry
	language map[string]*keywordSet
	region   map[string]*keywordSet
}

// NewContextAnalyzer compiles the intent keyword tables.
func NewContextAnalyzer(reg *Registry) *ContextAnalyzer {
	c := &ContextAnalyzer{
		registry: reg,
		language: make(map[string]*keywordSet, len(languageIntent)),
		region:   make(map[string]*keywordSet, len(regionIntent)),
	}
	for code, words := range languageIntent {
		c.language[code] = newKeywordSet(words)
	}
	for code, words := range regionIntent {
		c.region[code] = newKeywordSet(words)
	}
	return c
}

// Analyze infers the context of query for the target region.
// Language keywords win over country words when both appear.
func (c *ContextAnalyzer) Analyze(query, region string) SearchContext {
	region = strings.ToUpper(strings.TrimSpace(region))
	sc := SearchContext{
		Query:          query,
		Region:         region,
		TargetLanguage: c.registry.Profile(region).Language,
		Intent:         IntentGeneral,
		Multiplier:     multiplierGeneral,
	}

	text := normalize(query)
	if lang := bestMatch(c.language, text); lang != "" {
		sc.Intent = IntentSpecificLanguage
		sc.IntentLanguage = lang
		sc.Multiplier = multiplierLanguageMismatch
		if lang == sc.TargetLanguage {
			sc.Multiplier = multiplierLanguageMatch
		}
		return sc
	}
	if r := bestMatch(c.region, text); r != "" {
		sc.Intent = IntentSpecificRegion
		sc.IntentRegion = r
		sc.Multiplier = multiplierRegion
	}
	return sc
}

// bestMatch returns the key with the most hits; ties go to the lowest key.
func bestMatch(sets map[string]*keywordSet, text string) string {
	keys := make([]string, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestHits := "", 0
	for _, k := range keys {
		if h := sets[k].count(text); h > bestHits {
			best, bestHits = k, h
		}
	}
	return best
}

// RegionalBoost is the momentum boost for a relevance score under this context.
func (sc SearchContext) RegionalBoost(relevance float64) float64 {
	return clamp01(relevance * sc.Multiplier)
}
