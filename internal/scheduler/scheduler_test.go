package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/internal/store"
	"github.com/elonfeng/vidradar/pkg/alert"
	"github.com/elonfeng/vidradar/pkg/source"
	"github.com/elonfeng/vidradar/pkg/trend"
	"github.com/elonfeng/vidradar/pkg/video"
)

// stubCollector returns a copy of its records as one chart batch.
type stubCollector struct {
	records []video.Record
}

func (c *stubCollector) Name() string { return "stub" }

func (c *stubCollector) Collect(context.Context, source.Query) ([]video.Batch, error) {
	recs := append([]video.Record(nil), c.records...)
	return []video.Batch{video.NewBatch(video.SourcePopularityChart, recs)}, nil
}

type fixture struct {
	sched     *Scheduler
	collector *stubCollector
	store     *store.SQLiteStore
	alerts    *atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := trend.NewEngine(trend.Options{})
	require.NoError(t, err)

	var alerts atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		alerts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hook.Close)

	c := &stubCollector{records: []video.Record{
		{ID: "derby", Title: "Bundesliga Derby", Channel: "ARD Sport", Views: 90000, Likes: 2000, Comments: 300, AgeHours: 3},
	}}
	mgr := alert.NewManager([]alert.Notifier{alert.NewWebhook(hook.URL, "")})
	s := New(st, []source.Collector{c}, engine, mgr, []Watch{{Query: "bundesliga", Region: "de"}}, time.Hour, logger.NewNop())

	return &fixture{sched: s, collector: c, store: st, alerts: &alerts}
}

func TestRankOnce_StoresAndAlertsOnNewLeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.sched.watch[0]

	r, err := f.sched.RankOnce(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "DE", r.Region)
	require.NotEmpty(t, r.Results)
	assert.Equal(t, "derby", r.Results[0].Record.ID)
	assert.Equal(t, int32(1), f.alerts.Load())

	// same leader, no second alert
	_, err = f.sched.RankOnce(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.alerts.Load())

	f.collector.records = append(f.collector.records, video.Record{
		ID: "topspiel", Title: "Bundesliga Derby", Channel: "ARD Sport", Views: 900000, Likes: 30000, Comments: 2000, AgeHours: 2,
	})
	r, err = f.sched.RankOnce(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "topspiel", r.Results[0].Record.ID)
	assert.Equal(t, int32(2), f.alerts.Load())

	runs, err := f.store.ListRuns(ctx, store.ListOpts{Region: "DE"})
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestTick_StopsWhenCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.sched.Tick(ctx)

	runs, err := f.store.ListRuns(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := f.sched.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	runs, err := f.store.ListRuns(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
