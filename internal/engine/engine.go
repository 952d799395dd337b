// Package engine computes recommendation scores for single users, combining
// the generative provider with the heuristic fallback.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripnotes/spotrank/internal/db"
	"github.com/tripnotes/spotrank/internal/heuristic"
	"github.com/tripnotes/spotrank/internal/provider"
	"github.com/tripnotes/spotrank/pkg/models"
)

// Result is the outcome of scoring one user.
type Result struct {
	Scores []models.RecommendationScore
	Source models.ScoreSource
	// Err carries the provider failure that forced a fallback. It is nil
	// when the provider succeeded or was never attempted.
	Err error
}

// Engine scores one user at a time. The provider may be nil, in which case
// every user scores through the heuristic.
type Engine struct {
	interactions db.InteractionReader
	spots        db.SpotReader
	provider     provider.ScoringProvider
	heuristic    *heuristic.Scorer
	logger       zerolog.Logger
	now          func() time.Time
}

// New creates an Engine.
func New(
	interactions db.InteractionReader,
	spots db.SpotReader,
	prov provider.ScoringProvider,
	scorer *heuristic.Scorer,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		interactions: interactions,
		spots:        spots,
		provider:     prov,
		heuristic:    scorer,
		logger:       logger.With().Str("component", "engine").Logger(),
		now:          time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ComputeScoresForUser scores one user's candidate set.
//
// Users without interaction history produce an empty result rather than an
// error: they carry no signal, and scoring every spot for them would drown
// the table in noise. Provider failures of any kind degrade to the heuristic
// for the same candidate set, with the failure preserved in Result.Err.
// A returned error means the user could not be scored at all.
func (e *Engine) ComputeScoresForUser(ctx context.Context, userID int64) (*Result, error) {
	aggs, err := e.interactions.GetUserInteractions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load interactions for user %d: %w", userID, err)
	}
	if len(aggs) == 0 {
		return &Result{Source: models.SourceFallback}, nil
	}

	spots, err := e.spots.ListSpots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load spots: %w", err)
	}

	interactions := make(map[int64]models.InteractionAggregate, len(aggs))
	for _, agg := range aggs {
		interactions[agg.SpotID] = agg
	}

	candidates := e.candidateSpots(spots, interactions)
	if len(candidates) == 0 {
		return &Result{Source: models.SourceFallback}, nil
	}

	now := e.now()

	if e.provider != nil {
		scores, provErr := e.scoreViaProvider(ctx, userID, aggs, spots, candidates)
		if provErr == nil {
			for i := range scores {
				scores[i].ComputedAtEpoch = now.UnixMilli()
			}
			return &Result{Scores: scores, Source: models.SourceProvider}, nil
		}

		e.logger.Warn().
			Int64("user_id", userID).
			Err(provErr).
			Msg("provider scoring failed, falling back to heuristic")

		fallback := e.scoreViaHeuristic(ctx, userID, candidates, interactions, now)
		return &Result{Scores: fallback, Source: models.SourceFallback, Err: provErr}, nil
	}

	return &Result{
		Scores: e.scoreViaHeuristic(ctx, userID, candidates, interactions, now),
		Source: models.SourceFallback,
	}, nil
}

// candidateSpots filters the full catalog down to this user's candidate set.
// Spots the user knows exhaustively are excluded outright: re-ranking them
// wastes provider tokens and the heuristic would only bury them anyway.
func (e *Engine) candidateSpots(spots []models.Spot, interactions map[int64]models.InteractionAggregate) []models.Spot {
	cfg := e.heuristic.Config()

	candidates := make([]models.Spot, 0, len(spots))
	for _, spot := range spots {
		if agg, ok := interactions[spot.ID]; ok {
			if agg.ViewCount >= cfg.ExhaustiveViewCount && agg.TotalDurationMs >= cfg.ExhaustiveDwellMs {
				continue
			}
		}
		candidates = append(candidates, spot)
	}
	return candidates
}

func (e *Engine) scoreViaProvider(
	ctx context.Context,
	userID int64,
	aggs []models.InteractionAggregate,
	allSpots []models.Spot,
	candidates []models.Spot,
) ([]models.RecommendationScore, error) {
	// Interaction summaries may mention spots outside the candidate set, so
	// titles come from the full catalog.
	spotsByID := make(map[int64]models.Spot, len(allSpots))
	for _, spot := range allSpots {
		spotsByID[spot.ID] = spot
	}
	candidateIDs := make(map[int64]struct{}, len(candidates))
	for _, spot := range candidates {
		candidateIDs[spot.ID] = struct{}{}
	}

	req := provider.ScoreRequest{
		UserID:       userID,
		Interactions: make([]provider.InteractionSummary, 0, len(aggs)),
		Candidates:   make([]provider.CandidateSpot, 0, len(candidates)),
	}
	for _, agg := range aggs {
		summary := provider.InteractionSummary{
			SpotID:           agg.SpotID,
			ViewCount:        agg.ViewCount,
			TotalViewSeconds: float64(agg.TotalDurationMs) / 1000.0,
			LastViewedAt:     agg.LastViewedAt().UTC().Format(time.RFC3339),
		}
		if spot, ok := spotsByID[agg.SpotID]; ok {
			summary.Title = spot.Title
			summary.Tags = spot.Tags
		}
		req.Interactions = append(req.Interactions, summary)
	}
	for _, spot := range candidates {
		req.Candidates = append(req.Candidates, provider.CandidateSpot{
			SpotID:      spot.ID,
			Title:       spot.Title,
			Description: spot.Description,
			Tags:        spot.Tags,
		})
	}

	call, err := e.provider.Score(ctx, req)
	if err != nil {
		return nil, err
	}
	return provider.ValidateToolCall(call, userID, candidateIDs)
}

func (e *Engine) scoreViaHeuristic(
	ctx context.Context,
	userID int64,
	candidates []models.Spot,
	interactions map[int64]models.InteractionAggregate,
	now time.Time,
) []models.RecommendationScore {
	globalViews, err := e.interactions.GetGlobalViewCounts(ctx)
	if err != nil {
		// The popularity baseline is an enrichment; score without it rather
		// than fail the user.
		e.logger.Warn().Err(err).Msg("global view counts unavailable, cold-start scores lose popularity signal")
		globalViews = nil
	}
	return e.heuristic.Scores(userID, candidates, interactions, globalViews, now)
}
