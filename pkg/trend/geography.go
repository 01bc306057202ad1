package trend

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/elonfeng/vidradar/pkg/video"
)

// Signal names recorded in GeographyAnalysis.Sources.
const (
	SignalSpamCheck     = "spam_check"
	SignalChannel       = "channel_keywords"
	SignalContent       = "content_topics"
	SignalContamination = "contamination"
)

// Spam reasons other than phrase matches.
const (
	ReasonNonASCIIChannel = "non_ascii_channel"
	ReasonCommentRatio    = "comment_ratio"
	ReasonVanityMetric    = "spam_phrase:vanity_metric"
)

const (
	nonASCIIBlacklist     = 0.40
	commentRatioBlacklist = 0.08

	contentWeight       = 0.3
	contaminationBonus  = 0.3
	contaminationFactor = 0.1
)

var signalConfidence = map[string]float64{
	SignalChannel:       0.45,
	SignalContent:       0.30,
	SignalContamination: 0.25,
}

// DefaultSpamPhrases are call-to-action and giveaway phrases that blacklist a channel or title.
var DefaultSpamPhrases = []string{
	"click here", "download now", "free money", "get rich", "get rich quick", "make money fast",
	"earn money online", "sub4sub", "sub 4 sub", "sub for sub", "free robux", "free v bucks",
	"free vbucks", "free gift card", "free followers", "guaranteed views",
}

// vanityMetric matches "10k views in 24 hours" style claims on normalized text.
var vanityMetric = regexp.MustCompile(` \d+[km]? (views|likes|subscribers|subs|followers) (in|within) \d+ `)

// GeographyAnalysis is the inferred origin and spam risk of a video's channel.
type GeographyAnalysis struct {
	Score          float64  `json:"score"`
	Confidence     float64  `json:"confidence"`
	DetectedRegion string   `json:"detected_region"`
	Blacklisted    bool     `json:"blacklisted"`
	Sources        []string `json:"sources"`
	SpamReasons    []string `json:"spam_reasons,omitempty"`
	SpamScore      float64  `json:"spam_score"`
}

// channelFacts is the part of an analysis that only depends on channel name and region.
type channelFacts struct {
	nonASCII     float64
	spamHits     []string
	tierScore    float64
	tierHits     int
	otherRegion  string
	otherScore   float64
	contamHits   []string
	anyTierMatch bool
}

type geoKey struct {
	channel string
	region  string
}

// GeoCache memoizes channel facts per (channel, region) for one ranking run.
// It is safe for concurrent use.
type GeoCache struct {
	mu      sync.Mutex
	entries map[geoKey]*channelFacts
	hits    int
	misses  int
}

// NewGeoCache returns an empty cache.
func NewGeoCache() *GeoCache {
	return &GeoCache{entries: make(map[geoKey]*channelFacts)}
}

// Len returns the number of cached channels.
func (c *GeoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache hits and misses.
func (c *GeoCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *GeoCache) get(k geoKey) (*channelFacts, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return f, ok
}

func (c *GeoCache) put(k geoKey, f *channelFacts) {
	c.mu.Lock()
	c.entries[k] = f
	c.mu.Unlock()
}

// GeographyAnalyzer infers where a channel is from and whether it is spam.
type GeographyAnalyzer struct {
	registry *Registry
	spam     *keywordSet
}

// NewGeographyAnalyzer creates an analyzer. Empty spamPhrases uses DefaultSpamPhrases.
func NewGeographyAnalyzer(reg *Registry, spamPhrases []string) *GeographyAnalyzer {
	if reg == nil {
		reg = NewRegistry(nil, nil, ContaminationMarkers{})
	}
	if len(spamPhrases) == 0 {
		spamPhrases = DefaultSpamPhrases
	}
	return &GeographyAnalyzer{registry: reg, spam: newKeywordSet(spamPhrases)}
}

// Analyze runs the geography analysis of rec for region. cache may be nil.
func (a *GeographyAnalyzer) Analyze(rec video.Record, region string, cache *GeoCache) GeographyAnalysis {
	region = strings.ToUpper(strings.TrimSpace(region))
	title := normalize(rec.Title)
	facts := a.channelFacts(rec.Channel, region, cache)

	if reasons := a.spamReasons(rec, title, facts); len(reasons) > 0 {
		return GeographyAnalysis{
			Score:          0,
			Confidence:     1,
			DetectedRegion: SpamRegion,
			Blacklisted:    true,
			Sources:        []string{SignalSpamCheck},
			SpamReasons:    reasons,
			SpamScore:      1,
		}
	}

	profile := a.registry.Profile(region)
	score := facts.tierScore
	var sources []string
	if facts.anyTierMatch {
		sources = append(sources, SignalChannel)
	}

	content, contentHits := profile.contentScore(title)
	if contentHits > 0 {
		score += contentWeight * content
		sources = append(sources, SignalContent)
	}

	cont := a.registry.contamination
	contHits := unionCount(facts.contamHits, cont.hits(title))
	targetHits := facts.tierHits + contentHits
	dominated := contHits >= 2 && contHits > targetHits
	home := cont.home[region]
	if dominated {
		sources = append(sources, SignalContamination)
		if home {
			score += contaminationBonus
		} else {
			score *= contaminationFactor
		}
	}

	out := GeographyAnalysis{
		Score:     clamp01(score),
		Sources:   sources,
		SpamScore: softSpamScore(rec, facts.nonASCII),
	}
	if len(sources) == 0 {
		out.Confidence = 0
		out.DetectedRegion = UnknownRegion
		return out
	}

	conf := 0.0
	for _, s := range sources {
		conf += signalConfidence[s]
	}
	if len(sources) >= 2 {
		conf += 0.1
	}
	out.Confidence = clamp01(conf)
	out.DetectedRegion = detectRegion(region, facts, targetHits, dominated, home, cont.label)
	return out
}

func detectRegion(region string, f *channelFacts, targetHits int, dominated, home bool, label string) string {
	switch {
	case dominated && !home:
		return label
	case dominated && home:
		return region
	case f.otherRegion != "" && f.otherScore > f.tierScore:
		return f.otherRegion
	case targetHits > 0:
		return region
	}
	return UnknownRegion
}

func (a *GeographyAnalyzer) channelFacts(channel, region string, cache *GeoCache) *channelFacts {
	key := geoKey{channel: channel, region: region}
	if cache != nil {
		if f, ok := cache.get(key); ok {
			return f
		}
	}

	text := normalize(channel)
	f := &channelFacts{
		nonASCII:   nonASCIIShare(channel),
		spamHits:   a.spam.hits(text),
		contamHits: a.registry.contamination.hits(text),
	}
	f.tierScore, f.tierHits = a.registry.Profile(region).channelScore(text)
	f.anyTierMatch = f.tierHits > 0

	for _, code := range a.registry.Regions() {
		if code == region {
			continue
		}
		s, n := a.registry.profiles[code].channelScore(text)
		if n == 0 {
			continue
		}
		f.anyTierMatch = true
		if s > f.otherScore {
			f.otherRegion, f.otherScore = code, s
		}
	}

	if cache != nil {
		cache.put(key, f)
	}
	return f
}

func (a *GeographyAnalyzer) spamReasons(rec video.Record, title string, f *channelFacts) []string {
	var reasons []string
	phrases := append(append([]string{}, f.spamHits...), a.spam.hits(title)...)
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		if seen[p] {
			continue
		}
		seen[p] = true
		reasons = append(reasons, "spam_phrase:"+p)
	}
	if vanityMetric.MatchString(title) || vanityMetric.MatchString(normalize(rec.Channel)) {
		reasons = append(reasons, ReasonVanityMetric)
	}
	if f.nonASCII > nonASCIIBlacklist {
		reasons = append(reasons, ReasonNonASCIIChannel)
	}
	if commentRatio(rec) > commentRatioBlacklist {
		reasons = append(reasons, ReasonCommentRatio)
	}
	return reasons
}

// softSpamScore grades records that passed the blacklist.
func softSpamScore(rec video.Record, channelNonASCII float64) float64 {
	s := 0.0
	if commentRatio(rec) > 0.04 {
		s += 0.3
	}
	if channelNonASCII > 0.2 {
		s += 0.3
	}
	if letterCount(rec.Title) >= 8 && upperShare(rec.Title) > 0.7 {
		s += 0.2
	}
	if strings.Contains(rec.Title, "!!!") || strings.Contains(rec.Title, "???") {
		s += 0.2
	}
	return clamp01(s)
}

func commentRatio(rec video.Record) float64 {
	return float64(rec.Comments) / float64(rec.EffectiveViews())
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

func (c *contaminationSet) hits(text string) []string {
	var out []string
	out = append(out, c.names.hits(text)...)
	out = append(out, c.lang.hits(text)...)
	out = append(out, c.topic.hits(text)...)
	return out
}

func unionCount(a, b []string) int {
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		seen[s] = true
	}
	return len(seen)
}
