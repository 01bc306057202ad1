package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

const channelFeedURL = "https://www.youtube.com/feeds/videos.xml"

// ChannelFeed is a watched channel. URL overrides the feed derived from ChannelID.
type ChannelFeed struct {
	Name      string `yaml:"name" json:"name"`
	ChannelID string `yaml:"channel_id" json:"channel_id"`
	URL       string `yaml:"url" json:"url,omitempty"`
}

// FeedURL returns the Atom feed location of the channel.
func (f ChannelFeed) FeedURL() string {
	if f.URL != "" {
		return f.URL
	}
	return channelFeedURL + "?" + url.Values{"channel_id": {f.ChannelID}}.Encode()
}

// FeedsConfig configures the channel feed collector.
type FeedsConfig struct {
	Channels []ChannelFeed
	// MaxAge drops entries published earlier than this.
	MaxAge  time.Duration
	Exclude []string
	Timeout time.Duration
}

// Feeds collects recent uploads from watched channels' Atom feeds.
type Feeds struct {
	client *http.Client
	parser *gofeed.Parser
	cfg    FeedsConfig
	now    func() time.Time
	log    logger.Logger
}

// NewFeeds creates a feed collector.
func NewFeeds(cfg FeedsConfig, log logger.Logger) *Feeds {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 48 * time.Hour
	}
	return &Feeds{
		client: newHTTPClient(cfg.Timeout),
		parser: gofeed.NewParser(),
		cfg:    cfg,
		now:    time.Now,
		log:    logger.OrNop(log),
	}
}

func (f *Feeds) Name() string { return "channel_feeds" }

// Collect returns one channel feed batch with the uploads that match the query.
// A failing feed is logged and skipped.
func (f *Feeds) Collect(ctx context.Context, q Query) ([]video.Batch, error) {
	filter := QueryFilter(q.Text, f.cfg.Exclude)

	var recs []video.Record
	failed := 0
	for _, ch := range f.cfg.Channels {
		got, err := f.collectFeed(ctx, ch, filter)
		if err != nil {
			failed++
			f.log.Warn("channel feed failed", logger.String("feed", ch.Name), logger.Error(err))
			continue
		}
		recs = append(recs, got...)
	}

	if failed > 0 && failed == len(f.cfg.Channels) {
		return nil, &CollectError{Source: f.Name(), Query: q.Text, Err: fmt.Errorf("all %d feeds failed", failed)}
	}
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return []video.Batch{video.NewBatch(video.SourceChannelFeed, recs)}, nil
}

func (f *Feeds) collectFeed(ctx context.Context, ch ChannelFeed, filter *Filter) ([]video.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ch.FeedURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", ch.Name, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", ch.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", ch.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", ch.Name, err)
	}

	now := f.now()
	cutoff := now.Add(-f.cfg.MaxAge)
	channelName := ch.Name
	if parsed.Author != nil && parsed.Author.Name != "" {
		channelName = parsed.Author.Name
	}

	var out []video.Record
	for _, entry := range parsed.Items {
		var published time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}
		if !filter.Matches(entry.Title + " " + entry.Description) {
			continue
		}

		meta := youtubeExtensions(entry.Extensions)
		if meta.id == "" {
			meta.id = videoIDFromLink(entry.Link)
		}
		if meta.id == "" {
			continue
		}

		name := channelName
		if entry.Author != nil && entry.Author.Name != "" {
			name = entry.Author.Name
		}
		rec := video.Record{
			ID:          meta.id,
			Title:       entry.Title,
			Channel:     name,
			ChannelID:   ch.ChannelID,
			Views:       meta.views,
			Likes:       meta.likes,
			PublishedAt: published,
			AgeHours:    video.AgeFrom(published, now),
			Thumbnail:   meta.thumbnail,
		}
		if rec.Thumbnail == "" && entry.Image != nil {
			rec.Thumbnail = entry.Image.URL
		}
		out = append(out, rec)
	}
	return out, nil
}

type entryMeta struct {
	id        string
	thumbnail string
	views     int64
	likes     int64
}

// youtubeExtensions reads yt:videoId and the media:group block of an entry.
func youtubeExtensions(exts ext.Extensions) entryMeta {
	var m entryMeta
	if exts == nil {
		return m
	}
	if yt := exts["yt"]["videoId"]; len(yt) > 0 {
		m.id = strings.TrimSpace(yt[0].Value)
	}
	groups := exts["media"]["group"]
	if len(groups) == 0 {
		return m
	}
	if th := groups[0].Children["thumbnail"]; len(th) > 0 {
		m.thumbnail = th[0].Attrs["url"]
	}
	for _, community := range groups[0].Children["community"] {
		if st := community.Children["statistics"]; len(st) > 0 {
			m.views, _ = strconv.ParseInt(st[0].Attrs["views"], 10, 64)
		}
		if sr := community.Children["starRating"]; len(sr) > 0 {
			m.likes, _ = strconv.ParseInt(sr[0].Attrs["count"], 10, 64)
		}
	}
	return m
}

func videoIDFromLink(link string) string {
	if m := watchID.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}
