package trend

import (
	"fmt"
	"math"
	"sort"

	"github.com/elonfeng/vidradar/pkg/video"
)

// Normalization selects how NormalizedScore is derived.
type Normalization string

const (
	// NormalizeBlended mixes relevance (60%) and relative momentum (40%).
	NormalizeBlended Normalization = "blended"
	// NormalizeMomentum uses relative momentum only.
	NormalizeMomentum Normalization = "momentum"
)

// ParseNormalization accepts the normalization names; empty means blended.
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case "", NormalizeBlended:
		return NormalizeBlended, nil
	case NormalizeMomentum:
		return NormalizeMomentum, nil
	}
	return "", fmt.Errorf("unknown normalization %q", s)
}

// TrendingResult is one ranked video with all its scores.
type TrendingResult struct {
	Record          video.Record      `json:"video"`
	Momentum        float64           `json:"momentum"`
	Breakdown       ScoreBreakdown    `json:"breakdown"`
	Rank            int               `json:"rank"`
	NormalizedScore float64           `json:"normalized_score"`
	Confidence      float64           `json:"confidence"`
	TrulyTrending   bool              `json:"truly_trending"`
	Relevance       RelevanceResult   `json:"relevance"`
	Geography       GeographyAnalysis `json:"geography"`
	IntentMatch     float64           `json:"intent_match"`
}

// SkippedRecord is an input record that did not make it into scoring or ranking.
type SkippedRecord struct {
	ID     string          `json:"id"`
	Source video.SourceTag `json:"source"`
	Reason string          `json:"reason"`
}

// Ingest validates the records of all batches, stamps each with its batch priority
// and returns them ordered by (priority, batch index, position).
func Ingest(batches []video.Batch) ([]video.Record, []SkippedRecord) {
	type seq struct {
		rec      video.Record
		priority int
		batch    int
		pos      int
	}

	var (
		all     []seq
		skipped []SkippedRecord
	)
	for bi := range batches {
		b := &batches[bi]
		p := b.EffectivePriority()
		for pos, rec := range b.Videos {
			if rec.Source == "" {
				rec.Source = b.Source
			}
			if rec.Source.Trending() {
				rec.TrendingSource = true
			}
			if err := rec.Validate(); err != nil {
				skipped = append(skipped, SkippedRecord{ID: rec.ID, Source: rec.Source, Reason: err.Error()})
				continue
			}
			rec.Priority = p
			all = append(all, seq{rec: rec, priority: p, batch: bi, pos: pos})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].priority != all[j].priority {
			return all[i].priority < all[j].priority
		}
		if all[i].batch != all[j].batch {
			return all[i].batch < all[j].batch
		}
		return all[i].pos < all[j].pos
	})

	out := make([]video.Record, len(all))
	for i, s := range all {
		out[i] = s.rec
	}
	return out, skipped
}

// Dedup keeps the first record per id and returns the number dropped.
func Dedup(recs []video.Record) ([]video.Record, int) {
	seen := make(map[string]struct{}, len(recs))
	out := make([]video.Record, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, len(recs) - len(out)
}

// RankResults sorts by relevance then momentum (stable), keeps the top n,
// assigns 1-based ranks and normalized scores. The input slice is reordered.
func RankResults(results []TrendingResult, top int, mode Normalization) []TrendingResult {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].Relevance.Score, results[j].Relevance.Score
		if ri != rj {
			return ri > rj
		}
		return results[i].Momentum > results[j].Momentum
	})

	if top > 0 && len(results) > top {
		results = results[:top]
	}

	maxMomentum := 0.0
	for _, r := range results {
		maxMomentum = math.Max(maxMomentum, r.Momentum)
	}

	for i := range results {
		results[i].Rank = i + 1
		results[i].NormalizedScore = normalizedScore(results[i], maxMomentum, mode)
	}
	return results
}

func normalizedScore(r TrendingResult, maxMomentum float64, mode Normalization) float64 {
	rel := 0.0
	if maxMomentum > 0 {
		rel = r.Momentum / maxMomentum
	}
	var s float64
	if mode == NormalizeMomentum {
		s = rel * 10
	} else {
		s = (r.Relevance.Score*0.6 + rel*0.4) * 10
	}
	return math.Round(s*100) / 100
}
