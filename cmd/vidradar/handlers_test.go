package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/vidradar/pkg/source"
	"github.com/elonfeng/vidradar/pkg/trend"
	"github.com/elonfeng/vidradar/pkg/video"
)

func TestReadBatches(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "list.json")
	require.NoError(t, os.WriteFile(list, []byte(`[{"source":"page","videos":[{"id":"a"},{"id":"b"}]}]`), 0o600))
	batches, err := readBatches(list)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, video.SourcePage, batches[0].Source)
	assert.Len(t, batches[0].Videos, 2)

	req := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(req, []byte(`{"query":"x","batches":[{"source":"popularity_chart","videos":[{"id":"c"}]}]}`), 0o600))
	batches, err = readBatches(req)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "c", batches[0].Videos[0].ID)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`nope`), 0o600))
	_, err = readBatches(bad)
	assert.Error(t, err)
}

func TestPrintRanking(t *testing.T) {
	r := &trend.Ranking{
		Query:  "bundesliga",
		Region: "DE",
		Results: []trend.TrendingResult{{
			Record:          video.Record{ID: "a", Title: "Bundesliga Derby", Channel: "ARD Sport", Source: video.SourcePopularityChart},
			Rank:            1,
			NormalizedScore: 9.2,
			TrulyTrending:   true,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, printRanking(&buf, r))
	out := buf.String()
	assert.Contains(t, out, `query "bundesliga"`)
	assert.Contains(t, out, "popularity_chart *")
	assert.Contains(t, out, "Bundesliga Derby")

	assert.Error(t, printRanking(&buf, nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Größe…", truncate("Größenwahn", 6))
}

type stubCollector struct {
	name    string
	batches []video.Batch
	err     error
}

func (s stubCollector) Name() string { return s.name }

func (s stubCollector) Collect(context.Context, source.Query) ([]video.Batch, error) {
	return s.batches, s.err
}

func TestCollectEach(t *testing.T) {
	collectors := []source.Collector{
		stubCollector{name: "first", batches: []video.Batch{video.NewBatch(video.SourcePopularityChart, []video.Record{{ID: "a"}})}},
		stubCollector{name: "broken", err: errors.New("quota gone")},
		stubCollector{name: "last", batches: []video.Batch{video.NewBatch(video.SourceChannelFeed, []video.Record{{ID: "b"}})}},
	}

	batches, errs := collectEach(context.Background(), collectors, source.Query{Text: "q", Region: "DE"}, nil)

	require.Len(t, batches, 2)
	assert.Equal(t, video.SourcePopularityChart, batches[0].Source)
	assert.Equal(t, video.SourceChannelFeed, batches[1].Source)

	require.Len(t, errs, 1)
	var ce *source.CollectError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, "broken", ce.Source)

	var buf bytes.Buffer
	reportErrors(&buf, errs)
	assert.Equal(t, "warning: broken: collect \"q\": quota gone\n", buf.String())
}
