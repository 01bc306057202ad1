// Package video defines the normalized video record every vidradar component works on.
package video

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceTag identifies how a record was discovered.
type SourceTag string

const (
	SourcePage            SourceTag = "page"
	SourceCatalogSearch   SourceTag = "catalog_search"
	SourcePopularityChart SourceTag = "popularity_chart"
	SourceVelocity        SourceTag = "velocity"
	// SourceChannelFeed marks uploads from watched channels. It is not a trending surface.
	SourceChannelFeed SourceTag = "channel_feed"
)

// MinAgeHours floors record age so velocity never divides by zero.
const MinAgeHours = 0.1

var (
	ErrMissingID     = errors.New("video: missing id")
	ErrNegativeCount = errors.New("video: negative count")
	ErrUnknownSource = errors.New("video: unknown source tag")
)

// AllSourceTags returns all known source tags in default priority order.
func AllSourceTags() []SourceTag {
	return []SourceTag{SourcePopularityChart, SourcePage, SourceVelocity, SourceCatalogSearch, SourceChannelFeed}
}

// ParseSourceTag accepts the tag names plus a few common aliases.
func ParseSourceTag(s string) (SourceTag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "page", "trending_page", "scrape":
		return SourcePage, nil
	case "catalog_search", "search", "api":
		return SourceCatalogSearch, nil
	case "popularity_chart", "chart", "most_popular", "api_trending":
		return SourcePopularityChart, nil
	case "velocity", "velocity_trending":
		return SourceVelocity, nil
	case "channel_feed", "feed", "rss":
		return SourceChannelFeed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// DefaultPriority is the merge priority of a tag; lower values win dedup.
// Trending surfaces rank ahead of generic search so the kept copy carries trending status.
func (t SourceTag) DefaultPriority() int {
	switch t {
	case SourcePopularityChart:
		return 0
	case SourcePage:
		return 1
	case SourceVelocity:
		return 2
	case SourceCatalogSearch:
		return 3
	case SourceChannelFeed:
		return 4
	}
	return 5
}

// Trending reports whether records from this tag came from a trending surface.
func (t SourceTag) Trending() bool {
	switch t {
	case SourcePopularityChart, SourcePage, SourceVelocity:
		return true
	}
	return false
}

// Record is one video as delivered by a collector.
type Record struct {
	ID              string    `json:"id" db:"video_id"`
	Title           string    `json:"title" db:"title"`
	Channel         string    `json:"channel" db:"channel"`
	ChannelID       string    `json:"channel_id,omitempty" db:"channel_id"`
	Views           int64     `json:"views" db:"views"`
	Comments        int64     `json:"comments" db:"comments"`
	Likes           int64     `json:"likes" db:"likes"`
	DurationSeconds int64     `json:"duration_seconds" db:"duration_seconds"`
	AgeHours        float64   `json:"age_hours" db:"age_hours"`
	PublishedAt     time.Time `json:"published_at" db:"published_at"`
	Thumbnail       string    `json:"thumbnail,omitempty" db:"thumbnail"`
	Source          SourceTag `json:"source" db:"source"`
	TrendingSource  bool      `json:"trending_source" db:"trending_source"`
	// Priority is assigned at ingestion from the batch; lower wins dedup.
	Priority int `json:"-" db:"-"`
}

// Validate checks the record invariants.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	if r.Views < 0 || r.Comments < 0 || r.Likes < 0 || r.DurationSeconds < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeCount, r.ID)
	}
	return nil
}

// EffectiveAge returns the age in hours, floored at MinAgeHours.
func (r *Record) EffectiveAge() float64 {
	if r.AgeHours < MinAgeHours {
		return MinAgeHours
	}
	return r.AgeHours
}

// EffectiveViews returns the view count, floored at 1.
func (r *Record) EffectiveViews() int64 {
	if r.Views < 1 {
		return 1
	}
	return r.Views
}

// URL returns the watch URL for the record.
func (r *Record) URL() string {
	return "https://www.youtube.com/watch?v=" + r.ID
}

// AgeFrom returns the hours elapsed between published and now, floored at MinAgeHours.
func AgeFrom(published, now time.Time) float64 {
	if published.IsZero() {
		return 24
	}
	h := now.Sub(published).Hours()
	if h < MinAgeHours {
		return MinAgeHours
	}
	return h
}

// Batch is a list of records from one source.
type Batch struct {
	Source SourceTag `json:"source"`
	// Priority overrides Source.DefaultPriority when set.
	Priority *int     `json:"priority,omitempty"`
	Videos   []Record `json:"videos"`
}

// EffectivePriority returns the batch priority.
func (b *Batch) EffectivePriority() int {
	if b.Priority != nil {
		return *b.Priority
	}
	return b.Source.DefaultPriority()
}

// NewBatch creates a batch and stamps every record with the tag and its trending flag.
func NewBatch(tag SourceTag, records []Record) Batch {
	for i := range records {
		records[i].Source = tag
		if tag.Trending() {
			records[i].TrendingSource = true
		}
	}
	return Batch{Source: tag, Videos: records}
}
