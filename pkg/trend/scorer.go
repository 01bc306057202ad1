package trend

import (
	"fmt"

	"github.com/elonfeng/vidradar/pkg/video"
)

// Scorer computes a single trend score for a record.
type Scorer interface {
	Score(rec video.Record) float64
}

// Strategy names accepted by NewScorer.
const (
	StrategyBasic        = "basic"
	StrategyRegional     = "regional"
	StrategyAntiSpam     = "anti_spam"
	StrategyExperimental = "experimental"
)

// StrategyParams returns the preset parameters for a strategy name.
func StrategyParams(name string) (MomentumParams, error) {
	p := DefaultMomentumParams()
	switch name {
	case "", StrategyBasic:
	case StrategyRegional:
		// Shorter decay favours what is current in the region.
		p.HalfLifeHours = 20
	case StrategyAntiSpam:
		// Views per hour are harder to fake than likes and comments.
		p.VelocityWeight, p.EngagementWeight, p.HalfLifeHours = 0.7, 0.2, 12
	case StrategyExperimental:
		p.VelocityWeight, p.EngagementWeight, p.HalfLifeHours = 0.5, 0.4, 36
	default:
		return MomentumParams{}, fmt.Errorf("unknown scoring strategy %q", name)
	}
	return p, nil
}

// NewScorer builds a momentum scorer from a strategy preset.
func NewScorer(name string, trendingBonus float64) (*MomentumScorer, error) {
	p, err := StrategyParams(name)
	if err != nil {
		return nil, err
	}
	if trendingBonus >= 1 {
		p.TrendingBonus = trendingBonus
	}
	return NewMomentumScorer(p), nil
}

// Strategies returns the preset names.
func Strategies() []string {
	return []string{StrategyBasic, StrategyRegional, StrategyAntiSpam, StrategyExperimental}
}

var _ Scorer = (*MomentumScorer)(nil)
