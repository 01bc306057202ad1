package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

// Velocity thresholds for promoting a search hit into the velocity batch.
const (
	velocityMinViewsPerHour = 500
	velocityMinEngagement   = 0.005
	velocityMaxAgeHours     = 48
)

const (
	catalogMaxPage      = 50
	defaultCatalogLimit = 25
)

// CatalogConfig configures the YouTube Data API collector.
type CatalogConfig struct {
	APIKey string
	// Endpoint overrides the API base URL.
	Endpoint string
	// Limit is the default number of results per call (max 50).
	Limit int
	// SearchWindow only searches videos published within this duration.
	SearchWindow time.Duration
	// SkipChart disables the mostPopular chart call.
	SkipChart bool
}

// Catalog collects popularity-chart, search and velocity batches from the YouTube Data API.
type Catalog struct {
	service *youtube.Service
	cfg     CatalogConfig
	now     func() time.Time
	log     logger.Logger
}

// NewCatalog creates a catalog collector.
func NewCatalog(ctx context.Context, cfg CatalogConfig, log logger.Logger, opts ...option.ClientOption) (*Catalog, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Limit <= 0 || cfg.Limit > catalogMaxPage {
		cfg.Limit = defaultCatalogLimit
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = 48 * time.Hour
	}

	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Catalog{
		service: service,
		cfg:     cfg,
		now:     time.Now,
		log:     logger.OrNop(log),
	}, nil
}

func (c *Catalog) Name() string { return "youtube" }

// Collect returns up to three batches: popularity chart, velocity-derived and plain search.
func (c *Catalog) Collect(ctx context.Context, q Query) ([]video.Batch, error) {
	limit := int64(c.cfg.Limit)
	if q.Limit > 0 && q.Limit <= catalogMaxPage {
		limit = int64(q.Limit)
	}
	region := strings.ToUpper(q.Region)

	var (
		batches []video.Batch
		errs    []error
	)

	if !c.cfg.SkipChart {
		chart, err := c.Chart(ctx, region, limit)
		if err != nil {
			errs = append(errs, err)
		} else {
			batches = append(batches, video.NewBatch(video.SourcePopularityChart, chart))
		}
	}

	if strings.TrimSpace(q.Text) != "" {
		found, err := c.Search(ctx, q.Text, region, limit)
		if err != nil {
			errs = append(errs, err)
		} else {
			fast, rest := SplitByVelocity(found)
			if len(fast) > 0 {
				batches = append(batches, video.NewBatch(video.SourceVelocity, fast))
			}
			batches = append(batches, video.NewBatch(video.SourceCatalogSearch, rest))
		}
	}

	if len(errs) > 0 {
		return batches, &CollectError{Source: c.Name(), Query: q.Text, Err: errors.Join(errs...)}
	}
	return batches, nil
}

// Chart fetches the mostPopular chart for a region.
func (c *Catalog) Chart(ctx context.Context, region string, limit int64) ([]video.Record, error) {
	call := c.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Chart("mostPopular").
		MaxResults(limit).
		Context(ctx)
	if region != "" {
		call = call.RegionCode(region)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list popular videos: %w", classify(err))
	}
	return c.records(resp.Items), nil
}

// Search runs a region-biased search over recent uploads and returns the detailed records.
func (c *Catalog) Search(ctx context.Context, query, region string, limit int64) ([]video.Record, error) {
	call := c.service.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		Order("relevance").
		PublishedAfter(c.now().Add(-c.cfg.SearchWindow).UTC().Format(time.RFC3339)).
		MaxResults(limit).
		Context(ctx)
	if region != "" {
		call = call.RegionCode(region)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", classify(err))
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	return c.Details(ctx, ids)
}

// Details fetches statistics and metadata for ids, 50 per request, in the order returned by the API.
func (c *Catalog) Details(ctx context.Context, ids []string) ([]video.Record, error) {
	var out []video.Record
	for start := 0; start < len(ids); start += catalogMaxPage {
		end := min(start+catalogMaxPage, len(ids))
		resp, err := c.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
			Id(ids[start:end]...).
			Context(ctx).
			Do()
		if err != nil {
			return out, fmt.Errorf("list video details: %w", classify(err))
		}
		out = append(out, c.records(resp.Items)...)
	}
	return out, nil
}

func (c *Catalog) records(items []*youtube.Video) []video.Record {
	now := c.now()
	out := make([]video.Record, 0, len(items))
	for _, item := range items {
		if item == nil || item.Id == "" {
			continue
		}
		rec := video.Record{ID: item.Id, AgeHours: 24}
		if s := item.Snippet; s != nil {
			rec.Title = s.Title
			rec.Channel = s.ChannelTitle
			rec.ChannelID = s.ChannelId
			rec.Thumbnail = bestThumbnail(s.Thumbnails)
			if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
				rec.PublishedAt = t
				rec.AgeHours = video.AgeFrom(t, now)
			}
		}
		if st := item.Statistics; st != nil {
			rec.Views = int64(st.ViewCount)
			rec.Likes = int64(st.LikeCount)
			rec.Comments = int64(st.CommentCount)
		}
		if cd := item.ContentDetails; cd != nil {
			if d, err := ParseISODuration(cd.Duration); err == nil {
				rec.DurationSeconds = int64(d / time.Second)
			} else {
				c.log.Debug("unparsable duration", logger.String("video_id", item.Id), logger.String("duration", cd.Duration))
			}
		}
		out = append(out, rec)
	}
	return out
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// HighVelocity reports whether rec gains views fast enough to count as trending.
func HighVelocity(rec video.Record) bool {
	if rec.AgeHours <= 0 || rec.Views == 0 {
		return false
	}
	perHour := float64(rec.Views) / rec.AgeHours
	engagement := float64(rec.Likes+rec.Comments) / float64(rec.Views)
	return perHour >= velocityMinViewsPerHour &&
		engagement >= velocityMinEngagement &&
		rec.AgeHours <= velocityMaxAgeHours
}

// SplitByVelocity partitions records into high-velocity and other, keeping order.
func SplitByVelocity(recs []video.Record) (fast, rest []video.Record) {
	for _, r := range recs {
		if HighVelocity(r) {
			fast = append(fast, r)
		} else {
			rest = append(rest, r)
		}
	}
	return fast, rest
}

// ParseISODuration parses the ISO 8601 durations used by the catalog, like PT1H2M3S or P1DT5M.
func ParseISODuration(s string) (time.Duration, error) {
	if s == "P" || s == "PT" {
		return 0, fmt.Errorf("empty iso 8601 duration %q", s)
	}
	d, err := duration.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d.ToTimeDuration(), nil
}

// classify maps quota errors to ErrQuotaExceeded.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	if gerr.Code == 403 || gerr.Code == 429 {
		for _, item := range gerr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" || item.Reason == "dailyLimitExceeded" {
				return fmt.Errorf("%w: %s", ErrQuotaExceeded, gerr.Message)
			}
		}
		if strings.Contains(gerr.Message, "quota") {
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, gerr.Message)
		}
	}
	return err
}
