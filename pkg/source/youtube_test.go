package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

var catalogNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func apiVideo(id, title, published string, views, likes, comments int) map[string]any {
	return map[string]any{
		"id": id,
		"snippet": map[string]any{
			"title":        title,
			"channelTitle": "ARD Sport",
			"channelId":    "UC123",
			"publishedAt":  published,
			"thumbnails": map[string]any{
				"default": map[string]any{"url": "https://i.ytimg.com/" + id + "/default.jpg"},
				"high":    map[string]any{"url": "https://i.ytimg.com/" + id + "/hq.jpg"},
			},
		},
		"statistics": map[string]any{
			"viewCount":    strconv.Itoa(views),
			"likeCount":    strconv.Itoa(likes),
			"commentCount": strconv.Itoa(comments),
		},
		"contentDetails": map[string]any{"duration": "PT4M13S"},
	}
}

func newCatalogServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	videos := map[string]map[string]any{
		"chart1": apiVideo("chart1", "Tagesschau", "2026-01-10T06:00:00Z", 200000, 4000, 500),
		"fast":   apiVideo("fast", "Bundesliga Derby", "2026-01-10T10:00:00Z", 10000, 100, 10),
		"slow":   apiVideo("slow", "Bundesliga Rückblick", "2026-01-08T12:00:00Z", 1000, 5, 0),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		seen = append(seen, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/videos") && q.Get("chart") == "mostPopular":
			assert.Equal(t, "DE", q.Get("regionCode"))
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{videos["chart1"]}})
		case strings.HasSuffix(r.URL.Path, "/videos"):
			var items []any
			for _, id := range q["id"] {
				for _, part := range strings.Split(id, ",") {
					if v, ok := videos[part]; ok {
						items = append(items, v)
					}
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		case strings.HasSuffix(r.URL.Path, "/search"):
			assert.Equal(t, "bundesliga", q.Get("q"))
			assert.Equal(t, "video", q.Get("type"))
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{
				map[string]any{"id": map[string]any{"kind": "youtube#video", "videoId": "fast"}},
				map[string]any{"id": map[string]any{"kind": "youtube#video", "videoId": "slow"}},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestCatalog(t *testing.T, srv *httptest.Server, cfg CatalogConfig) *Catalog {
	t.Helper()
	cfg.APIKey = "test-key"
	c, err := NewCatalog(context.Background(), cfg, logger.NewNop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	c.now = func() time.Time { return catalogNow }
	return c
}

func TestNewCatalog_RequiresKey(t *testing.T) {
	_, err := NewCatalog(context.Background(), CatalogConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestCatalog_Collect(t *testing.T) {
	srv, _ := newCatalogServer(t)
	c := newTestCatalog(t, srv, CatalogConfig{})

	batches, err := c.Collect(context.Background(), Query{Text: "bundesliga", Region: "de"})
	require.NoError(t, err)
	require.Len(t, batches, 3)

	assert.Equal(t, video.SourcePopularityChart, batches[0].Source)
	assert.Equal(t, video.SourceVelocity, batches[1].Source)
	assert.Equal(t, video.SourceCatalogSearch, batches[2].Source)

	chart := batches[0].Videos[0]
	assert.Equal(t, "chart1", chart.ID)
	assert.Equal(t, int64(200000), chart.Views)
	assert.Equal(t, int64(253), chart.DurationSeconds)
	assert.InDelta(t, 6.0, chart.AgeHours, 1e-9)
	assert.Equal(t, "https://i.ytimg.com/chart1/hq.jpg", chart.Thumbnail)
	assert.True(t, chart.TrendingSource)

	require.Len(t, batches[1].Videos, 1)
	assert.Equal(t, "fast", batches[1].Videos[0].ID)
	assert.True(t, batches[1].Videos[0].TrendingSource)

	require.Len(t, batches[2].Videos, 1)
	assert.Equal(t, "slow", batches[2].Videos[0].ID)
	assert.False(t, batches[2].Videos[0].TrendingSource)
}

func TestCatalog_SkipChartWithoutQuery(t *testing.T) {
	srv, seen := newCatalogServer(t)
	c := newTestCatalog(t, srv, CatalogConfig{SkipChart: true})

	batches, err := c.Collect(context.Background(), Query{Region: "DE"})
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Empty(t, *seen)
}

func TestCatalog_QuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The request cannot be completed because you have exceeded your quota.","errors":[{"reason":"quotaExceeded","domain":"youtube.quota"}]}}`))
	}))
	defer srv.Close()
	c := newTestCatalog(t, srv, CatalogConfig{})

	batches, err := c.Collect(context.Background(), Query{Text: "x", Region: "DE"})
	assert.Empty(t, batches)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	var ce *CollectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "youtube", ce.Source)
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"PT4M13S", 4*time.Minute + 13*time.Second, false},
		{"PT1H", time.Hour, false},
		{"P1DT2H", 26 * time.Hour, false},
		{"PT0S", 0, false},
		{"PT1M30.5S", 90*time.Second + 500*time.Millisecond, false},
		{"P", 0, true},
		{"PT", 0, true},
		{"4:13", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISODuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHighVelocity(t *testing.T) {
	tests := []struct {
		name string
		rec  video.Record
		want bool
	}{
		{"fast and engaged", video.Record{Views: 10000, Likes: 100, AgeHours: 2}, true},
		{"too slow", video.Record{Views: 900, Likes: 100, AgeHours: 2}, false},
		{"no engagement", video.Record{Views: 10000, Likes: 10, AgeHours: 2}, false},
		{"too old", video.Record{Views: 1000000, Likes: 10000, AgeHours: 49}, false},
		{"no views", video.Record{AgeHours: 1}, false},
		{"no age", video.Record{Views: 10000, Likes: 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HighVelocity(tt.rec))
		})
	}
}
