package trend

import (
	"fmt"

	"github.com/elonfeng/vidradar/pkg/video"
)

// FilterReason says why a record was excluded.
type FilterReason string

const (
	FilterSpam            FilterReason = "spam"
	FilterLowRelevance    FilterReason = "low_relevance"
	FilterForeignLanguage FilterReason = "foreign_language"
	FilterIntentMismatch  FilterReason = "intent_mismatch"
	FilterTooShort        FilterReason = "too_short"
)

// FilterThresholds are the cut-offs of the contextual filter.
type FilterThresholds struct {
	Spam              float64 `yaml:"spam" json:"spam"`
	MinRelevance      float64 `yaml:"min_relevance" json:"min_relevance"`
	ForeignIntent     float64 `yaml:"foreign_intent" json:"foreign_intent"`
	ForeignRelevance  float64 `yaml:"foreign_relevance" json:"foreign_relevance"`
	SpecificIntent    float64 `yaml:"specific_intent" json:"specific_intent"`
	SpecificRelevance float64 `yaml:"specific_relevance" json:"specific_relevance"`
}

// DefaultFilterThresholds returns the standard thresholds.
func DefaultFilterThresholds() FilterThresholds {
	return FilterThresholds{
		Spam:              0.6,
		MinRelevance:      0.2,
		ForeignIntent:     0.1,
		ForeignRelevance:  0.4,
		SpecificIntent:    0.1,
		SpecificRelevance: 0.3,
	}
}

// Validate checks every threshold is within [0,1].
func (t FilterThresholds) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"spam", t.Spam},
		{"min_relevance", t.MinRelevance},
		{"foreign_intent", t.ForeignIntent},
		{"foreign_relevance", t.ForeignRelevance},
		{"specific_intent", t.SpecificIntent},
		{"specific_relevance", t.SpecificRelevance},
	}
	for _, c := range checks {
		if c.v < 0 || c.v > 1 {
			return fmt.Errorf("filter threshold %s out of range: %v", c.name, c.v)
		}
	}
	return nil
}

// FilterDecision is the outcome for one record.
type FilterDecision struct {
	Keep   bool         `json:"keep"`
	Reason FilterReason `json:"reason,omitempty"`
}

// ContextualFilter decides which scored records are dropped for a search context.
type ContextualFilter struct {
	registry   *Registry
	geo        *GeographyAnalyzer
	thresholds FilterThresholds
}

// NewContextualFilter creates a filter. Zero thresholds use the defaults.
func NewContextualFilter(reg *Registry, geo *GeographyAnalyzer, t FilterThresholds) *ContextualFilter {
	if t == (FilterThresholds{}) {
		t = DefaultFilterThresholds()
	}
	return &ContextualFilter{registry: reg, geo: geo, thresholds: t}
}

// Thresholds returns the filter configuration.
func (f *ContextualFilter) Thresholds() FilterThresholds {
	return f.thresholds
}

// IntentMatch scores how well rec satisfies the query intent (0-1).
func (f *ContextualFilter) IntentMatch(rec video.Record, geo GeographyAnalysis, sc SearchContext, cache *GeoCache) float64 {
	if geo.Blacklisted {
		return 0
	}
	text := normalize(rec.Title + " " + rec.Channel)

	switch sc.Intent {
	case IntentSpecificLanguage:
		return f.registry.LanguageScore(text, sc.IntentLanguage)
	case IntentSpecificRegion:
		if sc.IntentRegion == sc.Region {
			return geo.Score
		}
		return f.geo.Analyze(rec, sc.IntentRegion, cache).Score
	}

	m := 0.0
	if sc.TargetLanguage != "" {
		m = f.registry.LanguageScore(text, sc.TargetLanguage)
	}
	if geo.DetectedRegion == sc.Region && geo.Score > m {
		m = geo.Score
	}
	return m
}

// NonTargetLanguage reports whether rec reads as a known language other than the target's.
func (f *ContextualFilter) NonTargetLanguage(rec video.Record, sc SearchContext) bool {
	if sc.TargetLanguage == "" {
		return false
	}
	lang := f.registry.DominantLanguage(normalize(rec.Title))
	return lang != "" && lang != sc.TargetLanguage
}

// Decide applies the filter decision table.
func (f *ContextualFilter) Decide(geo GeographyAnalysis, rel RelevanceResult, intentMatch float64, nonTarget bool, sc SearchContext) FilterDecision {
	t := f.thresholds
	if geo.Blacklisted || rel.Blacklisted || geo.SpamScore > t.Spam {
		return FilterDecision{Reason: FilterSpam}
	}

	if sc.Intent == IntentGeneral {
		if rel.Score < t.MinRelevance {
			return FilterDecision{Reason: FilterLowRelevance}
		}
		if nonTarget && intentMatch < t.ForeignIntent && rel.Score < t.ForeignRelevance {
			return FilterDecision{Reason: FilterForeignLanguage}
		}
		return FilterDecision{Keep: true}
	}

	if intentMatch < t.SpecificIntent && rel.Score < t.SpecificRelevance {
		return FilterDecision{Reason: FilterIntentMismatch}
	}
	return FilterDecision{Keep: true}
}
