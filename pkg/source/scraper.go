package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

const (
	defaultTrendingBase = "https://www.youtube.com"
	defaultScrapeLimit  = 50
)

var (
	watchID  = regexp.MustCompile(`(?:[?&]v=|/shorts/|youtu\.be/)([A-Za-z0-9_-]{11})`)
	scriptID = regexp.MustCompile(`"videoId":\s*"([A-Za-z0-9_-]{11})"`)
)

// Enricher fills in statistics for scraped video ids.
type Enricher interface {
	Details(ctx context.Context, ids []string) ([]video.Record, error)
}

// ScraperConfig configures the trending page scraper.
type ScraperConfig struct {
	BaseURL   string
	UserAgent string
	Limit     int
	Timeout   time.Duration
}

// Scraper discovers video ids on the regional trending page.
type Scraper struct {
	client   *http.Client
	cfg      ScraperConfig
	enricher Enricher
	log      logger.Logger
}

// NewScraper creates a scraper. enricher may be nil, in which case records carry no statistics.
func NewScraper(cfg ScraperConfig, enricher Enricher, log logger.Logger) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTrendingBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultScrapeLimit
	}
	return &Scraper{
		client:   newHTTPClient(cfg.Timeout),
		cfg:      cfg,
		enricher: enricher,
		log:      logger.OrNop(log),
	}
}

func (s *Scraper) Name() string { return "trending_page" }

// Collect returns one page-derived batch.
func (s *Scraper) Collect(ctx context.Context, q Query) ([]video.Batch, error) {
	limit := s.cfg.Limit
	if q.Limit > 0 {
		limit = q.Limit
	}

	found, err := s.fetch(ctx, strings.ToUpper(q.Region), limit)
	if err != nil {
		return nil, &CollectError{Source: s.Name(), Query: q.Text, Err: err}
	}
	if len(found) == 0 {
		return nil, nil
	}

	recs := found
	if s.enricher != nil {
		recs = s.enrich(ctx, found)
	}
	return []video.Batch{video.NewBatch(video.SourcePage, recs)}, nil
}

func (s *Scraper) fetch(ctx context.Context, region string, limit int) ([]video.Record, error) {
	u := s.cfg.BaseURL + "/feed/trending"
	if region != "" {
		u += "?" + url.Values{"gl": {region}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create trending request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trending page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending page status %d", resp.StatusCode)
	}

	return ExtractVideos(resp.Body, limit)
}

// ExtractVideos parses a trending page and returns up to limit records in page order.
// Anchors are read first; embedded JSON fills up when anchors yield less than half.
func ExtractVideos(r io.Reader, limit int) ([]video.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse trending page: %w", err)
	}

	seen := make(map[string]bool)
	var out []video.Record

	doc.Find(`a[href*="/watch?v="], a[href*="/shorts/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		href, _ := a.Attr("href")
		m := watchID.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return true
		}
		seen[m[1]] = true
		out = append(out, video.Record{
			ID:      m[1],
			Title:   anchorTitle(a),
			Channel: nearbyChannel(a),
		})
		return true
	})

	if len(out) < limit/2 {
		doc.Find("script").EachWithBreak(func(_ int, sc *goquery.Selection) bool {
			for _, m := range scriptID.FindAllStringSubmatch(sc.Text(), -1) {
				if len(out) >= limit {
					return false
				}
				if seen[m[1]] {
					continue
				}
				seen[m[1]] = true
				out = append(out, video.Record{ID: m[1]})
			}
			return true
		})
	}
	return out, nil
}

func anchorTitle(a *goquery.Selection) string {
	for _, attr := range []string{"title", "aria-label"} {
		if v, ok := a.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if t := strings.TrimSpace(a.Find("#video-title, h3, span").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(a.Text())
}

func nearbyChannel(a *goquery.Selection) string {
	sel := a.Parent().Find(`a[href*="/@"], a[href*="/channel/"], a[href*="/c/"]`).First()
	return strings.TrimSpace(sel.Text())
}

// enrich replaces scraped records with detailed ones, keeping page order.
// Ids the enricher does not return keep their scraped title and zero statistics.
func (s *Scraper) enrich(ctx context.Context, found []video.Record) []video.Record {
	ids := make([]string, len(found))
	for i, r := range found {
		ids[i] = r.ID
	}

	details, err := s.enricher.Details(ctx, ids)
	if err != nil {
		s.log.Warn("enrich scraped videos", logger.Int("ids", len(ids)), logger.Error(err))
	}
	byID := make(map[string]video.Record, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}

	out := make([]video.Record, len(found))
	for i, r := range found {
		if d, ok := byID[r.ID]; ok {
			out[i] = d
			continue
		}
		out[i] = r
	}
	return out
}
