package trend_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/vidradar/pkg/trend"
	"github.com/elonfeng/vidradar/pkg/video"
)

func newEngine(t *testing.T, opts trend.Options) *trend.Engine {
	t.Helper()
	e, err := trend.NewEngine(opts)
	require.NoError(t, err)
	return e
}

func germanBatches() []video.Batch {
	return []video.Batch{
		video.NewBatch(video.SourceCatalogSearch, []video.Record{
			{ID: "search-only", Title: "Bundesliga Tore am Wochenende", Channel: "Sportschau", Views: 40000, Likes: 800, Comments: 100, AgeHours: 6},
			{ID: "dup", Title: "Bundesliga Derby", Channel: "ARD Sport", Views: 90000, Likes: 2000, Comments: 300, AgeHours: 3},
			{ID: "spam", Title: "FREE ROBUX click here bundesliga", Channel: "Gamer", Views: 9000000, Likes: 5, Comments: 1, AgeHours: 1},
			{ID: "", Title: "broken"},
		}),
		video.NewBatch(video.SourcePopularityChart, []video.Record{
			{ID: "dup", Title: "Bundesliga Derby", Channel: "ARD Sport", Views: 90000, Likes: 2000, Comments: 300, AgeHours: 3},
			{ID: "asia", Title: "Tamil cricket highlights", Channel: "Bollywood Hindi Songs", Views: 5000000, Likes: 90000, Comments: 4000, AgeHours: 2},
			{ID: "ratio", Title: "Bundesliga", Channel: "ZDF", Views: 1000, Comments: 100, AgeHours: 4},
		}),
	}
}

func TestEngine_Rank(t *testing.T) {
	e := newEngine(t, trend.Options{})

	r, err := e.Rank(context.Background(), trend.Request{Query: "bundesliga", Region: "de", Batches: germanBatches(), Top: 5})
	require.NoError(t, err)

	assert.Equal(t, "DE", r.Region)
	assert.Equal(t, trend.IntentGeneral, r.Context.Intent)
	assert.Equal(t, trend.NormalizeBlended, r.Normalization)
	assert.Equal(t, 7, r.Stats.Received)
	assert.Equal(t, 1, r.Stats.Invalid)
	assert.Equal(t, 1, r.Stats.Duplicates)
	assert.Equal(t, 5, r.Stats.Scored)
	assert.Equal(t, 2, r.Stats.Filtered[trend.FilterSpam])

	require.Equal(t, []string{"dup", "search-only"}, resultIDs(r.Results))
	top, ok := r.Top()
	require.True(t, ok)
	assert.Equal(t, 1, top.Rank)
	assert.True(t, top.TrulyTrending, "chart copy must win dedup")
	assert.Equal(t, video.SourcePopularityChart, top.Record.Source)
	assert.True(t, top.Breakdown.RegionalBoostApplied)
	assert.False(t, r.Results[1].TrulyTrending)

	for _, res := range r.Results {
		assert.False(t, res.Geography.Blacklisted)
	}

	reasons := map[string]string{}
	for _, s := range r.Skipped {
		reasons[s.ID] = s.Reason
	}
	assert.Equal(t, "filtered: spam", reasons["spam"])
	assert.Equal(t, "filtered: spam", reasons["ratio"])
	assert.Equal(t, "filtered: low_relevance", reasons["asia"])
	assert.Contains(t, reasons[""], "missing id")
}

func TestEngine_RankDecodedRequest(t *testing.T) {
	e := newEngine(t, trend.Options{})

	body := `{"region":"DE","batches":[
		{"source":"popularity_chart","videos":[{"id":"a","title":"Tagesschau Nachrichten","channel":"ARD Tagesschau","views":50000,"likes":900,"comments":80,"age_hours":3}]},
		{"source":"catalog_search","videos":[{"id":"b","title":"Tagesschau Nachrichten","channel":"ARD Tagesschau","views":50000,"likes":900,"comments":80,"age_hours":3}]}
	]}`
	var req trend.Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	r, err := e.Rank(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, r.Results, 2)

	byID := map[string]trend.TrendingResult{}
	for _, res := range r.Results {
		byID[res.Record.ID] = res
	}
	chart, search := byID["a"], byID["b"]
	assert.True(t, chart.TrulyTrending)
	assert.True(t, chart.Record.TrendingSource)
	assert.True(t, chart.Breakdown.TrendingBonusApplied)
	assert.False(t, search.TrulyTrending)
	assert.False(t, search.Breakdown.TrendingBonusApplied)
	assert.Greater(t, chart.Momentum, search.Momentum)
	assert.Equal(t, "a", r.Results[0].Record.ID)
}

func TestEngine_MinDuration(t *testing.T) {
	e := newEngine(t, trend.Options{})

	recs := []video.Record{
		{ID: "long", Title: "Tagesschau Nachrichten", Channel: "ARD Tagesschau", Views: 5000, AgeHours: 2, DurationSeconds: 600},
		{ID: "short", Title: "Tagesschau Nachrichten", Channel: "ARD Tagesschau", Views: 9000, AgeHours: 2, DurationSeconds: 30},
		{ID: "unknown", Title: "Tagesschau Nachrichten", Channel: "ARD Tagesschau", Views: 7000, AgeHours: 2},
	}
	r, err := e.Rank(context.Background(), trend.Request{
		Region:             "DE",
		Batches:            []video.Batch{video.NewBatch(video.SourcePage, recs)},
		MinDurationSeconds: 60,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"long", "unknown"}, resultIDs(r.Results))
	assert.Equal(t, 1, r.Stats.Filtered[trend.FilterTooShort])
	assert.Equal(t, 2, r.Stats.Scored)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, "short", r.Skipped[0].ID)
	assert.Equal(t, "filtered: too_short", r.Skipped[0].Reason)
}

func TestEngine_Deterministic(t *testing.T) {
	e := newEngine(t, trend.Options{Workers: 8})

	var batch []video.Record
	for i := 0; i < 60; i++ {
		batch = append(batch, video.Record{
			ID:       fmt.Sprintf("v%02d", i),
			Title:    fmt.Sprintf("Bundesliga Spieltag %d", i%5),
			Channel:  []string{"ZDF", "ARD Sport", "Sky Sport", "Kanal 7"}[i%4],
			Views:    int64(1000 * (i%7 + 1)),
			Likes:    int64(10 * (i % 3)),
			AgeHours: float64(i%4 + 1),
		})
	}
	req := trend.Request{Query: "bundesliga", Region: "DE", Batches: []video.Batch{video.NewBatch(video.SourcePage, batch)}, Top: 30}

	first, err := e.Rank(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Rank(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, resultIDs(first.Results), resultIDs(again.Results))
	}
	assert.Len(t, first.Results, 30)
}

func TestEngine_Defaults(t *testing.T) {
	e := newEngine(t, trend.Options{})

	var recs []video.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, video.Record{ID: fmt.Sprintf("id%d", i), Title: "Tagesschau Nachrichten", Channel: "ARD Tagesschau", Views: int64(100 + i)})
	}
	r, err := e.Rank(context.Background(), trend.Request{Batches: []video.Batch{video.NewBatch(video.SourcePage, recs)}})
	require.NoError(t, err)

	assert.Equal(t, trend.DefaultRegion, r.Region)
	assert.Len(t, r.Results, trend.DefaultTop)
	assert.Equal(t, "id19", r.Results[0].Record.ID)
	assert.InDelta(t, 0.44, r.Results[0].Relevance.Score, 1e-9)
	assert.InDelta(t, 6.64, r.Results[0].NormalizedScore, 0.01)
}

func TestEngine_UnsupportedRegion(t *testing.T) {
	e := newEngine(t, trend.Options{})

	r, err := e.Rank(context.Background(), trend.Request{
		Query:  "futebol",
		Region: "BR",
		Batches: []video.Batch{video.NewBatch(video.SourcePopularityChart, []video.Record{
			{ID: "b1", Title: "Futebol ao vivo", Channel: "Globo", Views: 10000, AgeHours: 2},
		})},
	})
	require.NoError(t, err)
	require.Len(t, r.Results, 1)
	assert.Equal(t, trend.UnknownRegion, r.Results[0].Geography.DetectedRegion)
	assert.Equal(t, "", r.Context.TargetLanguage)
}

func TestEngine_Cancelled(t *testing.T) {
	e := newEngine(t, trend.Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Rank(ctx, trend.Request{Region: "DE", Batches: germanBatches()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := trend.NewEngine(trend.Options{Normalization: "weird"})
	assert.Error(t, err)

	bad := trend.DefaultFilterThresholds()
	bad.Spam = 2
	_, err = trend.NewEngine(trend.Options{Filter: bad})
	assert.Error(t, err)

	e := newEngine(t, trend.Options{SupportedRegions: []string{"de", "US"}, DefaultTop: 3})
	info := e.Describe()
	assert.Equal(t, []string{"DE", "US"}, info.SupportedRegions)
	assert.Equal(t, 3, info.DefaultTop)
	assert.Equal(t, trend.DefaultVelocityWeight, info.Momentum.VelocityWeight)
}
