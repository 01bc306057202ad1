package trend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/vidradar/pkg/trend"
	"github.com/elonfeng/vidradar/pkg/video"
)

func TestContextAnalyzer(t *testing.T) {
	c := trend.NewContextAnalyzer(trend.NewRegistry(nil, nil, trend.ContaminationMarkers{}))

	tests := []struct {
		name       string
		query      string
		region     string
		intent     trend.IntentType
		lang       string
		intentReg  string
		multiplier float64
	}{
		{name: "general", query: "bundesliga highlights", region: "DE", intent: trend.IntentGeneral, multiplier: 1.5},
		{name: "matching language", query: "Deutsch Rap 2026", region: "de", intent: trend.IntentSpecificLanguage, lang: "de", multiplier: 0.8},
		{name: "austria shares german", query: "auf deutsch", region: "AT", intent: trend.IntentSpecificLanguage, lang: "de", multiplier: 0.8},
		{name: "foreign language", query: "hindi songs", region: "DE", intent: trend.IntentSpecificLanguage, lang: "hi", multiplier: 0.3},
		{name: "region word", query: "usa news", region: "DE", intent: trend.IntentSpecificRegion, intentReg: "US", multiplier: 1.0},
		{name: "language wins over country", query: "german music from austria", region: "GB", intent: trend.IntentSpecificLanguage, lang: "de", multiplier: 0.3},
		{name: "unsupported target", query: "bollywood", region: "BR", intent: trend.IntentSpecificLanguage, lang: "hi", multiplier: 0.3},
		{name: "empty query", query: "", region: "FR", intent: trend.IntentGeneral, multiplier: 1.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := c.Analyze(tc.query, tc.region)
			assert.Equal(t, tc.intent, sc.Intent)
			assert.Equal(t, tc.lang, sc.IntentLanguage)
			assert.Equal(t, tc.intentReg, sc.IntentRegion)
			assert.InDelta(t, tc.multiplier, sc.Multiplier, 1e-9)
		})
	}

	sc := c.Analyze("x", "AT")
	assert.Equal(t, "de", sc.TargetLanguage)
	assert.Equal(t, "", c.Analyze("x", "BR").TargetLanguage)
}

func TestSearchContext_RegionalBoost(t *testing.T) {
	sc := trend.SearchContext{Multiplier: 1.5}
	assert.InDelta(t, 0.75, sc.RegionalBoost(0.5), 1e-9)
	assert.Equal(t, 1.0, sc.RegionalBoost(0.9))
	assert.Equal(t, 0.0, sc.RegionalBoost(-1))
}

func TestContextualFilter_Decide(t *testing.T) {
	reg := trend.NewRegistry(nil, nil, trend.ContaminationMarkers{})
	f := trend.NewContextualFilter(reg, trend.NewGeographyAnalyzer(reg, nil), trend.FilterThresholds{})

	general := trend.SearchContext{Intent: trend.IntentGeneral, Region: "DE", TargetLanguage: "de"}
	specific := trend.SearchContext{Intent: trend.IntentSpecificLanguage, Region: "DE", IntentLanguage: "en"}

	tests := []struct {
		name      string
		geo       trend.GeographyAnalysis
		rel       float64
		intent    float64
		nonTarget bool
		sc        trend.SearchContext
		want      trend.FilterDecision
	}{
		{name: "blacklisted", geo: trend.GeographyAnalysis{Blacklisted: true, SpamScore: 1}, rel: 0.9, intent: 1, sc: general, want: trend.FilterDecision{Reason: trend.FilterSpam}},
		{name: "soft spam", geo: trend.GeographyAnalysis{SpamScore: 0.7}, rel: 0.9, intent: 1, sc: specific, want: trend.FilterDecision{Reason: trend.FilterSpam}},
		{name: "spam at threshold kept", geo: trend.GeographyAnalysis{SpamScore: 0.6}, rel: 0.9, intent: 1, sc: general, want: trend.FilterDecision{Keep: true}},
		{name: "low relevance", rel: 0.19, intent: 1, sc: general, want: trend.FilterDecision{Reason: trend.FilterLowRelevance}},
		{name: "foreign language", rel: 0.3, intent: 0.05, nonTarget: true, sc: general, want: trend.FilterDecision{Reason: trend.FilterForeignLanguage}},
		{name: "foreign but relevant", rel: 0.45, intent: 0.05, nonTarget: true, sc: general, want: trend.FilterDecision{Keep: true}},
		{name: "target language low intent", rel: 0.3, intent: 0, sc: general, want: trend.FilterDecision{Keep: true}},
		{name: "specific mismatch", rel: 0.1, intent: 0.05, sc: specific, want: trend.FilterDecision{Reason: trend.FilterIntentMismatch}},
		{name: "specific permissive on relevance", rel: 0.35, intent: 0, sc: specific, want: trend.FilterDecision{Keep: true}},
		{name: "specific permissive on intent", rel: 0.05, intent: 0.5, sc: specific, want: trend.FilterDecision{Keep: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := f.Decide(tc.geo, trend.RelevanceResult{Score: tc.rel, Blacklisted: tc.geo.Blacklisted}, tc.intent, tc.nonTarget, tc.sc)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestContextualFilter_IntentMatch(t *testing.T) {
	reg := trend.NewRegistry(nil, nil, trend.ContaminationMarkers{})
	geoA := trend.NewGeographyAnalyzer(reg, nil)
	f := trend.NewContextualFilter(reg, geoA, trend.DefaultFilterThresholds())
	c := trend.NewContextAnalyzer(reg)

	german := video.Record{ID: "g", Channel: "Kanal", Title: "Das ist der beste Tag"}
	english := video.Record{ID: "e", Channel: "Clips", Title: "The best of the year and more"}

	sc := c.Analyze("tag", "DE")
	assert.InDelta(t, 0.75, f.IntentMatch(german, geoA.Analyze(german, "DE", nil), sc, nil), 1e-9)
	assert.False(t, f.NonTargetLanguage(german, sc))
	assert.True(t, f.NonTargetLanguage(english, sc))

	sc = c.Analyze("english videos", "DE")
	assert.Greater(t, f.IntentMatch(english, geoA.Analyze(english, "DE", nil), sc, nil), 0.5)

	sc = c.Analyze("uk news", "DE")
	bbc := video.Record{ID: "b", Channel: "BBC London", Title: "Downing Street today"}
	assert.Greater(t, f.IntentMatch(bbc, geoA.Analyze(bbc, "DE", nil), sc, trend.NewGeoCache()), 0.5)

	blocked := trend.GeographyAnalysis{Blacklisted: true}
	assert.Equal(t, 0.0, f.IntentMatch(german, blocked, c.Analyze("", "DE"), nil))

	neutral := c.Analyze("", "BR")
	assert.False(t, f.NonTargetLanguage(english, neutral))
}

func TestFilterThresholds_Validate(t *testing.T) {
	assert.NoError(t, trend.DefaultFilterThresholds().Validate())

	bad := trend.DefaultFilterThresholds()
	bad.MinRelevance = 1.2
	assert.ErrorContains(t, bad.Validate(), "min_relevance")
}
