package trend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/vidradar/pkg/trend"
	"github.com/elonfeng/vidradar/pkg/video"
)

func TestRelevance_GermanExample(t *testing.T) {
	reg := trend.NewRegistry(nil, nil, trend.ContaminationMarkers{})
	a := trend.NewGeographyAnalyzer(reg, nil)
	qc := trend.NewQueryContext(reg, "bundesliga", "DE", nil)
	rec := video.Record{ID: "de1", Channel: "ZDF Deutschland", Title: "Bundesliga Highlights heute", Views: 50000}

	r := qc.Relevance(rec, a.Analyze(rec, "DE", nil))

	assert.Equal(t, 1.0, r.Breakdown.AntiBias)
	assert.GreaterOrEqual(t, r.Breakdown.QueryBonus, 0.6)
	assert.Equal(t, 1.0, r.Breakdown.ContentMatch)
	assert.GreaterOrEqual(t, r.Score, 0.7)
	assert.InDelta(t, 0.896, r.Score, 1e-9)
	assert.Equal(t, "highly relevant", r.Explanation)
	assert.InDelta(t, 0.925, r.Confidence, 1e-9)
	assert.Equal(t, "DE", r.DetectedRegion)
}

func TestRelevance_Blacklisted(t *testing.T) {
	reg := trend.NewRegistry(nil, nil, trend.ContaminationMarkers{})
	qc := trend.NewQueryContext(reg, "robux", "US", nil)
	rec := video.Record{ID: "s", Channel: "x", Title: "free robux"}

	r := qc.Relevance(rec, trend.GeographyAnalysis{Blacklisted: true, DetectedRegion: trend.SpamRegion, Confidence: 1})

	assert.True(t, r.Blacklisted)
	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, "not relevant", r.Explanation)
}

func TestRelevance_SubScores(t *testing.T) {
	reg := trend.NewRegistry(nil, nil, trend.ContaminationMarkers{})

	tests := []struct {
		name        string
		query       string
		rec         video.Record
		geo         trend.GeographyAnalysis
		wantContent float64
		wantBonus   float64
		wantAnti    float64
	}{
		{
			name:        "query alone",
			query:       "cooking",
			rec:         video.Record{ID: "1", Channel: "Chef", Title: "Cooking pasta"},
			geo:         trend.GeographyAnalysis{DetectedRegion: trend.UnknownRegion},
			wantContent: 0.5, wantBonus: 0.6, wantAnti: 0.3,
		},
		{
			name:        "query with region identifier",
			query:       "cooking",
			rec:         video.Record{ID: "2", Channel: "Chef", Title: "Cooking in Berlin"},
			geo:         trend.GeographyAnalysis{DetectedRegion: "DE", Score: 0.06},
			wantContent: 1, wantBonus: 0.6, wantAnti: 1,
		},
		{
			name:        "boost keywords without query",
			query:       "cooking",
			rec:         video.Record{ID: "3", Channel: "Deutsch kochen", Title: "Nachrichten aktuell"},
			geo:         trend.GeographyAnalysis{DetectedRegion: "AT"},
			wantContent: 0, wantBonus: 0.3, wantAnti: 0.2,
		},
		{
			name:        "empty query",
			query:       "",
			rec:         video.Record{ID: "4", Channel: "Chef", Title: "Anything"},
			geo:         trend.GeographyAnalysis{DetectedRegion: trend.UnknownRegion},
			wantContent: 0, wantBonus: 0, wantAnti: 0.3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			qc := trend.NewQueryContext(reg, tc.query, "DE", nil)
			r := qc.Relevance(tc.rec, tc.geo)
			assert.InDelta(t, tc.wantContent, r.Breakdown.ContentMatch, 1e-9)
			assert.InDelta(t, tc.wantBonus, r.Breakdown.QueryBonus, 1e-9)
			assert.InDelta(t, tc.wantAnti, r.Breakdown.AntiBias, 1e-9)

			want := 0.4*tc.geo.Score + 0.3*tc.wantContent + 0.2*tc.wantBonus + 0.1*tc.wantAnti
			assert.InDelta(t, want, r.Score, 1e-9)
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		})
	}
}

func TestRelevance_CustomBoostKeywords(t *testing.T) {
	reg := trend.NewRegistry(nil, nil, trend.ContaminationMarkers{})
	qc := trend.NewQueryContext(reg, "", "DE", []string{"derby", "tor", "abstieg", "pokal", "elfmeter"})
	rec := video.Record{ID: "b", Channel: "Sport", Title: "Derby: Tor, Elfmeter, Pokal und Abstieg"}

	r := qc.Relevance(rec, trend.GeographyAnalysis{DetectedRegion: trend.UnknownRegion})
	assert.InDelta(t, 0.5, r.Breakdown.QueryBonus, 1e-9)
}
