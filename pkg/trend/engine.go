package trend

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

// DefaultTop is the result count used when a request asks for fewer than one.
const DefaultTop = 12

// DefaultRegion is used when a request names no region.
const DefaultRegion = "DE"

// Options configures an Engine. Zero values use the defaults.
type Options struct {
	Momentum         MomentumParams
	Filter           FilterThresholds
	SupportedRegions []string
	ExtraKeywords    map[string]KeywordTable
	Contamination    ContaminationMarkers
	SpamPhrases      []string
	DefaultRegion    string
	DefaultTop       int
	Normalization    Normalization
	Workers          int
	Logger           logger.Logger
}

// Request is one ranking call.
type Request struct {
	Query   string        `json:"query"`
	Region  string        `json:"region"`
	Batches []video.Batch `json:"batches"`
	Top     int           `json:"top"`
	// BoostKeywords replace the region's boost keywords when set.
	BoostKeywords []string `json:"boost_keywords,omitempty"`
	// MinDurationSeconds drops videos shorter than this. Unknown durations (0) are kept.
	MinDurationSeconds int64 `json:"min_duration_seconds,omitempty"`
}

// Stats counts what happened to the input of a ranking call.
type Stats struct {
	Received   int                  `json:"received"`
	Invalid    int                  `json:"invalid"`
	Duplicates int                  `json:"duplicates"`
	Scored     int                  `json:"scored"`
	Filtered   map[FilterReason]int `json:"filtered"`
	Ranked     int                  `json:"ranked"`
}

// Ranking is the result of Engine.Rank.
type Ranking struct {
	ID            string           `json:"id,omitempty"`
	Query         string           `json:"query"`
	Region        string           `json:"region"`
	Context       SearchContext    `json:"context"`
	Normalization Normalization    `json:"normalization"`
	Results       []TrendingResult `json:"results"`
	Skipped       []SkippedRecord  `json:"skipped,omitempty"`
	Stats         Stats            `json:"stats"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Top returns the first ranked result, if any.
func (r *Ranking) Top() (TrendingResult, bool) {
	if r == nil || len(r.Results) == 0 {
		return TrendingResult{}, false
	}
	return r.Results[0], true
}

// Engine scores, filters and ranks video batches for a region.
// It is safe for concurrent use; per-call state lives in each Rank call.
type Engine struct {
	registry  *Registry
	momentum  *MomentumScorer
	geography *GeographyAnalyzer
	context   *ContextAnalyzer
	filter    *ContextualFilter

	defaultRegion string
	defaultTop    int
	normalization Normalization
	workers       int
	log           logger.Logger
}

// NewEngine creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	norm, err := ParseNormalization(string(opts.Normalization))
	if err != nil {
		return nil, err
	}
	if opts.Filter != (FilterThresholds{}) {
		if err := opts.Filter.Validate(); err != nil {
			return nil, err
		}
	}

	reg := NewRegistry(opts.SupportedRegions, opts.ExtraKeywords, opts.Contamination)
	geo := NewGeographyAnalyzer(reg, opts.SpamPhrases)

	e := &Engine{
		registry:      reg,
		momentum:      NewMomentumScorer(opts.Momentum),
		geography:     geo,
		context:       NewContextAnalyzer(reg),
		filter:        NewContextualFilter(reg, geo, opts.Filter),
		defaultRegion: strings.ToUpper(opts.DefaultRegion),
		defaultTop:    opts.DefaultTop,
		normalization: norm,
		workers:       opts.Workers,
		log:           logger.OrNop(opts.Logger),
	}
	if e.defaultRegion == "" {
		e.defaultRegion = DefaultRegion
	}
	if e.defaultTop < 1 {
		e.defaultTop = DefaultTop
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// Registry returns the compiled region tables.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// AlgorithmInfo describes the engine configuration.
type AlgorithmInfo struct {
	Momentum         MomentumParams   `json:"momentum"`
	Filter           FilterThresholds `json:"filter"`
	Normalization    Normalization    `json:"normalization"`
	SupportedRegions []string         `json:"supported_regions"`
	DefaultRegion    string           `json:"default_region"`
	DefaultTop       int              `json:"default_top"`
	Languages        []string         `json:"languages"`
}

// Describe returns the engine configuration.
func (e *Engine) Describe() AlgorithmInfo {
	return AlgorithmInfo{
		Momentum:         e.momentum.Params(),
		Filter:           e.filter.Thresholds(),
		Normalization:    e.normalization,
		SupportedRegions: e.registry.Regions(),
		DefaultRegion:    e.defaultRegion,
		DefaultTop:       e.defaultTop,
		Languages:        Languages(),
	}
}

type scored struct {
	result   TrendingResult
	decision FilterDecision
}

// Rank scores every record of the request and returns the top results.
// The only error is cancellation of ctx.
func (e *Engine) Rank(ctx context.Context, req Request) (*Ranking, error) {
	region := strings.ToUpper(strings.TrimSpace(req.Region))
	if region == "" {
		region = e.defaultRegion
	}
	top := req.Top
	if top < 1 {
		top = e.defaultTop
	}
	if !e.registry.Supported(region) {
		e.log.Warn("unsupported region, using neutral keyword tables", logger.String("region", region))
	}

	sc := e.context.Analyze(req.Query, region)
	qc := NewQueryContext(e.registry, req.Query, region, req.BoostKeywords)

	stats := Stats{Filtered: make(map[FilterReason]int)}
	for _, b := range req.Batches {
		stats.Received += len(b.Videos)
	}

	recs, skipped := Ingest(req.Batches)
	stats.Invalid = len(skipped)
	for _, s := range skipped {
		e.log.Debug("skipping invalid record",
			logger.String("video_id", s.ID),
			logger.String("source", string(s.Source)),
			logger.String("reason", s.Reason),
		)
	}

	recs, stats.Duplicates = Dedup(recs)
	if req.MinDurationSeconds > 0 {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.DurationSeconds > 0 && rec.DurationSeconds < req.MinDurationSeconds {
				stats.Filtered[FilterTooShort]++
				skipped = append(skipped, SkippedRecord{ID: rec.ID, Source: rec.Source, Reason: "filtered: " + string(FilterTooShort)})
				continue
			}
			kept = append(kept, rec)
		}
		recs = kept
	}

	cache := NewGeoCache()
	out := make([]scored, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.score(recs[i], region, sc, qc, cache)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score videos: %w", err)
	}
	stats.Scored = len(out)

	results := make([]TrendingResult, 0, len(out))
	for _, s := range out {
		if !s.decision.Keep {
			stats.Filtered[s.decision.Reason]++
			skipped = append(skipped, SkippedRecord{
				ID:     s.result.Record.ID,
				Source: s.result.Record.Source,
				Reason: "filtered: " + string(s.decision.Reason),
			})
			continue
		}
		results = append(results, s.result)
	}

	ranked := RankResults(results, top, e.normalization)
	stats.Ranked = len(ranked)

	hits, misses := cache.Stats()
	e.log.Info("ranking complete",
		logger.String("query", req.Query),
		logger.String("region", region),
		logger.String("intent", string(sc.Intent)),
		logger.Int("received", stats.Received),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("invalid", stats.Invalid),
		logger.Int("ranked", stats.Ranked),
		logger.Int("geo_cache_hits", hits),
		logger.Int("geo_cache_misses", misses),
	)

	return &Ranking{
		Query:         req.Query,
		Region:        region,
		Context:       sc,
		Normalization: e.normalization,
		Results:       ranked,
		Skipped:       skipped,
		Stats:         stats,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (e *Engine) score(rec video.Record, region string, sc SearchContext, qc *QueryContext, cache *GeoCache) scored {
	geo := e.geography.Analyze(rec, region, cache)
	rel := qc.Relevance(rec, geo)
	intent := e.filter.IntentMatch(rec, geo, sc, cache)
	nonTarget := e.filter.NonTargetLanguage(rec, sc)
	decision := e.filter.Decide(geo, rel, intent, nonTarget, sc)

	b := e.momentum.Calculate(rec, sc.RegionalBoost(rel.Score))
	return scored{
		result: TrendingResult{
			Record:        rec,
			Momentum:      b.Final,
			Breakdown:     b,
			Confidence:    e.momentum.Confidence(rec),
			TrulyTrending: rec.TrendingSource,
			Relevance:     rel,
			Geography:     geo,
			IntentMatch:   intent,
		},
		decision: decision,
	}
}
