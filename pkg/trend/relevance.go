package trend

import (
	"strings"

	"github.com/elonfeng/vidradar/pkg/video"
)

// Relevance weights.
const (
	weightChannelGeography = 0.4
	weightContentMatch     = 0.3
	weightQueryBonus       = 0.2
	weightAntiBias         = 0.1
)

// RelevanceBreakdown holds the four weighted sub-scores, each in [0,1].
type RelevanceBreakdown struct {
	ChannelGeography float64 `json:"channel_geography"`
	ContentMatch     float64 `json:"content_match"`
	QueryBonus       float64 `json:"query_bonus"`
	AntiBias         float64 `json:"anti_bias"`
}

// RelevanceResult is how pertinent a video is to the target region and query.
type RelevanceResult struct {
	Score          float64            `json:"score"`
	Confidence     float64            `json:"confidence"`
	Explanation    string             `json:"explanation"`
	Breakdown      RelevanceBreakdown `json:"breakdown"`
	DetectedRegion string             `json:"detected_region"`
	Blacklisted    bool               `json:"blacklisted"`
}

// QueryContext is the compiled query and region used by RelevanceScorer.
type QueryContext struct {
	Query  string
	Region string

	query   string
	profile *RegionProfile
	boost   *keywordSet
}

// NewQueryContext compiles a query context. Empty boost uses the region's boost keywords.
func NewQueryContext(reg *Registry, query, region string, boost []string) *QueryContext {
	region = strings.ToUpper(strings.TrimSpace(region))
	profile := reg.Profile(region)
	if len(boost) == 0 {
		boost = profile.Table.Boost
	}
	return &QueryContext{
		Query:   query,
		Region:  region,
		query:   strings.TrimSpace(normalize(query)),
		profile: profile,
		boost:   newKeywordSet(boost),
	}
}

// Relevance combines the geography analysis of rec with content and query signals.
func (qc *QueryContext) Relevance(rec video.Record, geo GeographyAnalysis) RelevanceResult {
	if geo.Blacklisted {
		return RelevanceResult{
			Score:          0,
			Confidence:     1,
			Explanation:    explain(0),
			DetectedRegion: geo.DetectedRegion,
			Blacklisted:    true,
		}
	}

	title := normalize(rec.Title)
	channel := normalize(rec.Channel)
	queryHit := qc.query != "" && strings.Contains(title, qc.query)

	b := RelevanceBreakdown{ChannelGeography: clamp01(geo.Score)}

	if queryHit {
		b.ContentMatch = 0.5
		if qc.profile.identifiers.any(title) || qc.profile.identifiers.any(channel) ||
			qc.boost.any(title) || qc.boost.any(channel) {
			b.ContentMatch = 1
		}
	}

	bonus := 0.0
	if queryHit {
		bonus = 0.6
	}
	bonus += 0.1 * float64(unionCount(qc.boost.hits(title), qc.boost.hits(channel)))
	b.QueryBonus = clamp01(bonus)

	switch geo.DetectedRegion {
	case qc.Region:
		b.AntiBias = 1
	case UnknownRegion:
		b.AntiBias = 0.3
	default:
		b.AntiBias = 0.2
	}

	score := clamp01(weightChannelGeography*b.ChannelGeography +
		weightContentMatch*b.ContentMatch +
		weightQueryBonus*b.QueryBonus +
		weightAntiBias*b.AntiBias)

	conf := 0.5 * geo.Confidence
	if queryHit {
		conf += 0.25
	}
	if geo.DetectedRegion == qc.Region {
		conf += 0.25
	}

	return RelevanceResult{
		Score:          score,
		Confidence:     clamp01(conf),
		Explanation:    explain(score),
		Breakdown:      b,
		DetectedRegion: geo.DetectedRegion,
	}
}

func explain(score float64) string {
	switch {
	case score >= 0.8:
		return "highly relevant"
	case score >= 0.6:
		return "relevant"
	case score >= 0.4:
		return "moderately relevant"
	case score >= 0.2:
		return "marginally relevant"
	}
	return "not relevant"
}
