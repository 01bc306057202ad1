package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/internal/store"
	"github.com/elonfeng/vidradar/pkg/alert"
	"github.com/elonfeng/vidradar/pkg/source"
	"github.com/elonfeng/vidradar/pkg/trend"
)

// Watch is one query ranked on every tick.
type Watch struct {
	Query  string
	Region string
	Top    int
}

// Scheduler periodically collects, ranks and stores every watched query.
type Scheduler struct {
	store      store.Store
	collectors []source.Collector
	engine     *trend.Engine
	alertMgr   *alert.Manager
	watch      []Watch
	interval   time.Duration
	log        logger.Logger
}

// New creates a new scheduler.
func New(
	s store.Store,
	collectors []source.Collector,
	engine *trend.Engine,
	alertMgr *alert.Manager,
	watch []Watch,
	interval time.Duration,
	log logger.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		store:      s,
		collectors: collectors,
		engine:     engine,
		alertMgr:   alertMgr,
		watch:      watch,
		interval:   interval,
		log:        logger.OrNop(log),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler: initial ranking", logger.Int("watches", len(s.watch)))
	s.Tick(ctx)

	s.log.Info("scheduler: running", logger.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick ranks every watch once. Failures are logged and do not stop the others.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, w := range s.watch {
		if ctx.Err() != nil {
			return
		}
		r, err := s.RankOnce(ctx, w)
		if err != nil {
			s.log.Error("scheduled ranking failed",
				logger.String("query", w.Query),
				logger.String("region", w.Region),
				logger.Error(err),
			)
			continue
		}
		s.log.Info("ranked",
			logger.String("run_id", r.ID),
			logger.String("query", r.Query),
			logger.String("region", r.Region),
			logger.Int("results", len(r.Results)),
		)
	}
}

// RankOnce collects, ranks and stores one watch, and alerts when the leader changed
// to a truly trending video.
func (s *Scheduler) RankOnce(ctx context.Context, w Watch) (*trend.Ranking, error) {
	region := strings.ToUpper(w.Region)
	if region == "" {
		region = s.engine.Describe().DefaultRegion
	}

	prev, err := s.store.LatestRun(ctx, w.Query, region)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	batches, _ := source.CollectAll(ctx, s.collectors, source.Query{Text: w.Query, Region: region}, s.log)

	r, err := s.engine.Rank(ctx, trend.Request{Query: w.Query, Region: region, Batches: batches, Top: w.Top})
	if err != nil {
		return nil, fmt.Errorf("rank %q/%s: %w", w.Query, region, err)
	}
	if err := s.store.SaveRun(ctx, r); err != nil {
		return nil, err
	}

	s.maybeAlert(ctx, prev, r)
	return r, nil
}

func (s *Scheduler) maybeAlert(ctx context.Context, prev *store.Run, r *trend.Ranking) {
	top, ok := r.Top()
	if !ok || !top.TrulyTrending || !s.alertMgr.HasNotifiers() {
		return
	}
	if prev != nil && prev.TopVideoID == top.Record.ID {
		return
	}

	if err := s.alertMgr.Broadcast(ctx, alert.FromRanking(r)); err != nil {
		s.log.Warn("alert failed", logger.String("video_id", top.Record.ID), logger.Error(err))
		return
	}
	s.log.Info("alerted", logger.String("video_id", top.Record.ID), logger.Float64("score", top.NormalizedScore))
}
