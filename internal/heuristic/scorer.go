// Package heuristic provides the deterministic fallback relevance scorer.
package heuristic

import (
	"time"

	"github.com/tripnotes/spotrank/pkg/models"
)

// Scorer computes fallback relevance scores from interaction aggregates
// and the global popularity baseline. It is pure: given identical inputs
// (including now) it produces identical output, with no hidden clock or
// randomness. Scores are always in [0,100].
type Scorer struct {
	config *models.HeuristicConfig
}

// NewScorer creates a scorer. If config is nil, the default tuning is used.
func NewScorer(config *models.HeuristicConfig) *Scorer {
	if config == nil {
		config = models.DefaultHeuristicConfig()
	}
	return &Scorer{config: config}
}

// Config returns the current heuristic tuning.
func (s *Scorer) Config() *models.HeuristicConfig {
	return s.config
}

// Scores computes one score per candidate spot for the user.
//
// Band selection per spot:
//   - never interacted: cold-start baseline driven by global popularity,
//     so unseen recommendations are still informative;
//   - thorough interaction (views and dwell both above thresholds): lowered
//     band, since repeat recommendation of a known spot is low value;
//   - anything in between: blend of recency (more recent interaction scores
//     higher) and incompleteness (short dwell relative to typical dwell
//     scores higher, suggesting interest without full exploration).
//
// Monotonicity guarantees: a more recent interaction never lowers a score,
// and higher global popularity never lowers a cold-start score.
// Results are ordered by candidate order; callers sort as needed.
func (s *Scorer) Scores(
	userID int64,
	candidates []models.Spot,
	interactions map[int64]models.InteractionAggregate,
	globalViews map[int64]uint64,
	now time.Time,
) []models.RecommendationScore {
	if len(candidates) == 0 {
		return nil
	}

	var maxViews uint64
	for _, v := range globalViews {
		if v > maxViews {
			maxViews = v
		}
	}

	computedAt := now.UnixMilli()
	scores := make([]models.RecommendationScore, 0, len(candidates))
	for _, spot := range candidates {
		var value float64
		if agg, ok := interactions[spot.ID]; ok {
			value = s.interactedScore(agg, now)
		} else {
			value = s.coldStartScore(spot.ID, globalViews, maxViews)
		}

		scores = append(scores, models.RecommendationScore{
			UserID:          userID,
			SpotID:          spot.ID,
			Score:           models.ClampScore(value),
			Source:          models.SourceFallback,
			ComputedAtEpoch: computedAt,
		})
	}
	return scores
}

// coldStartScore scores a spot the user has never seen from global signals.
func (s *Scorer) coldStartScore(spotID int64, globalViews map[int64]uint64, maxViews uint64) float64 {
	popularity := 0.0
	if maxViews > 0 {
		popularity = float64(globalViews[spotID]) / float64(maxViews)
	}
	return s.config.ColdStartBase + s.config.ColdStartPopWeight*popularity
}

// interactedScore scores a spot the user has some history with.
func (s *Scorer) interactedScore(agg models.InteractionAggregate, now time.Time) float64 {
	recency := s.recency(agg.LastViewedAtEpoch, now)

	if agg.ViewCount >= s.config.ThoroughViewCount && agg.TotalDurationMs >= s.config.ThoroughDwellMs {
		return s.config.ThoroughBase + s.config.ThoroughRecencyWeight*recency
	}

	incompleteness := 1.0
	if s.config.TypicalDwellMs > 0 {
		explored := float64(agg.TotalDurationMs) / float64(s.config.TypicalDwellMs)
		if explored > 1 {
			explored = 1
		}
		incompleteness = 1 - explored
	}

	return s.config.PartialBase +
		s.config.PartialRecencyWeight*recency +
		s.config.PartialIncompleteWeight*incompleteness
}

// recency maps the age of the last interaction to [0,1], decaying linearly
// to zero over RecencyWindowDays. Future timestamps count as "just now".
func (s *Scorer) recency(lastViewedEpoch int64, now time.Time) float64 {
	ageDays := now.Sub(time.UnixMilli(lastViewedEpoch)).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	if s.config.RecencyWindowDays <= 0 {
		return 0
	}
	r := 1 - ageDays/s.config.RecencyWindowDays
	if r < 0 {
		return 0
	}
	return r
}
