package trend

import (
	"math"

	"github.com/elonfeng/vidradar/pkg/video"
)

// Default momentum parameters.
const (
	DefaultVelocityWeight   = 0.6
	DefaultEngagementWeight = 0.3
	DefaultFreshnessWeight  = 0.1
	DefaultHalfLifeHours    = 24.0
	DefaultTrendingBonus    = 1.5

	// regionalBoostCap is the largest multiplier contribution of a full regional boost (+20%).
	regionalBoostCap = 0.2
)

// Plausible engagement band used by the confidence estimate.
const (
	minPlausibleEngagement = 0.001
	maxPlausibleEngagement = 0.1
)

// MomentumParams configures a MomentumScorer.
type MomentumParams struct {
	VelocityWeight   float64 `json:"velocity_weight"`
	EngagementWeight float64 `json:"engagement_weight"`
	FreshnessWeight  float64 `json:"freshness_weight"`
	HalfLifeHours    float64 `json:"half_life_hours"`
	TrendingBonus    float64 `json:"trending_bonus"`
}

// DefaultMomentumParams returns the basic preset.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		VelocityWeight:   DefaultVelocityWeight,
		EngagementWeight: DefaultEngagementWeight,
		FreshnessWeight:  DefaultFreshnessWeight,
		HalfLifeHours:    DefaultHalfLifeHours,
		TrendingBonus:    DefaultTrendingBonus,
	}
}

// ScoreBreakdown is the per-video result of the momentum formula.
type ScoreBreakdown struct {
	Velocity             float64 `json:"velocity"`
	Engagement           float64 `json:"engagement"`
	Freshness            float64 `json:"freshness"`
	Base                 float64 `json:"base"`
	Final                float64 `json:"final"`
	EngagementRate       float64 `json:"engagement_rate"`
	TrendingBonusApplied bool    `json:"trending_bonus_applied"`
	RegionalBoostApplied bool    `json:"regional_boost_applied"`
}

// MomentumScorer implements the velocity/engagement/freshness formula.
type MomentumScorer struct {
	params MomentumParams
}

// NewMomentumScorer creates a scorer. Zero weights fall back to the defaults.
func NewMomentumScorer(p MomentumParams) *MomentumScorer {
	if p.VelocityWeight+p.EngagementWeight+p.FreshnessWeight == 0 {
		d := DefaultMomentumParams()
		p.VelocityWeight = d.VelocityWeight
		p.EngagementWeight = d.EngagementWeight
		p.FreshnessWeight = d.FreshnessWeight
	}
	if p.HalfLifeHours <= 0 {
		p.HalfLifeHours = DefaultHalfLifeHours
	}
	if p.TrendingBonus < 1 {
		p.TrendingBonus = DefaultTrendingBonus
	}
	return &MomentumScorer{params: p}
}

// Params returns the scorer configuration.
func (m *MomentumScorer) Params() MomentumParams {
	return m.params
}

// Score returns the final momentum score with no regional boost.
func (m *MomentumScorer) Score(rec video.Record) float64 {
	return m.Calculate(rec, 0).Final
}

// Calculate runs the momentum formula. regionalBoost is clamped to [0,1].
func (m *MomentumScorer) Calculate(rec video.Record, regionalBoost float64) ScoreBreakdown {
	views := float64(rec.EffectiveViews())
	age := rec.EffectiveAge()

	engagementRate := float64(rec.Likes+rec.Comments) / views

	b := ScoreBreakdown{
		Velocity:       views / age * m.params.VelocityWeight,
		Engagement:     engagementRate * views * m.params.EngagementWeight,
		Freshness:      views * math.Exp(-age/m.params.HalfLifeHours) * m.params.FreshnessWeight,
		EngagementRate: engagementRate,
	}
	b.Base = b.Velocity + b.Engagement + b.Freshness
	b.Final = b.Base

	if rec.TrendingSource {
		b.Final *= m.params.TrendingBonus
		b.TrendingBonusApplied = true
	}

	boost := clamp01(regionalBoost)
	if boost > 0 {
		b.Final *= 1 + boost*regionalBoostCap
		b.RegionalBoostApplied = true
	}

	return b
}

// Confidence estimates how trustworthy the momentum score is (0-1).
func (m *MomentumScorer) Confidence(rec video.Record) float64 {
	c := 0.5
	if rec.TrendingSource {
		c += 0.3
	}
	if rec.Views > 0 {
		rate := float64(rec.Likes+rec.Comments) / float64(rec.Views)
		if rate >= minPlausibleEngagement && rate <= maxPlausibleEngagement {
			c += 0.2
		}
	}
	if rec.Views >= 1000 {
		c += 0.1
	}
	if rec.AgeHours >= 1 && rec.AgeHours <= 72 {
		c += 0.1
	}
	return math.Min(c, 1)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
