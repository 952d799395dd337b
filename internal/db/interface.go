// Package db defines the storage interfaces consumed by the scoring pipeline.
package db

import (
	"context"

	"github.com/tripnotes/spotrank/pkg/models"
)

// InteractionReader supplies read-only interaction aggregates. The pipeline
// consumes these records; producing them belongs to the surrounding app.
type InteractionReader interface {
	// GetUserInteractions returns all aggregates for one user, ordered by spot ID.
	GetUserInteractions(ctx context.Context, userID int64) ([]models.InteractionAggregate, error)
	// ListUserIDsWithInteractions returns the IDs of every user that has at
	// least one interaction, ascending.
	ListUserIDsWithInteractions(ctx context.Context) ([]int64, error)
	// GetGlobalViewCounts returns total view counts per spot across all
	// users, the popularity baseline for cold-start scoring.
	GetGlobalViewCounts(ctx context.Context) (map[int64]uint64, error)
}

// SpotReader supplies read-only spot metadata.
type SpotReader interface {
	// ListSpots returns all spots ordered by ID.
	ListSpots(ctx context.Context) ([]models.Spot, error)
}

// ScoreStore persists recommendation scores with upsert semantics.
type ScoreStore interface {
	// UpsertScores atomically inserts or replaces the given scores for one
	// user. Only the (user, spot) pairs present in scores are touched;
	// historical scores for spots outside this run's candidate set survive.
	UpsertScores(ctx context.Context, userID int64, scores []models.RecommendationScore) error
	// GetScoresForUser returns the user's current scores ordered by score
	// descending, ties broken by spot ID ascending.
	GetScoresForUser(ctx context.Context, userID int64) ([]models.RecommendationScore, error)
}

// SettingStore persists per-scope scheduling state.
type SettingStore interface {
	// GetOrCreateSetting returns the setting for a scope, creating it with
	// the given interval when absent.
	GetOrCreateSetting(ctx context.Context, scope string, intervalHours uint) (*models.JobSetting, error)
	// ClaimRun advances last_run_at from the observed value to runStart
	// under compare-and-swap semantics. It returns false when another run
	// advanced the scope in the interim; the caller must then abort as
	// skipped rather than double-score.
	ClaimRun(ctx context.Context, scope string, observed *int64, runStartEpoch int64) (bool, error)
}

// JobLogStore records run outcomes. Appends must be safe under concurrent runs.
type JobLogStore interface {
	// AppendEntry records exactly one entry for a run attempt.
	AppendEntry(ctx context.Context, entry *models.JobLogEntry) error
	// ListRecentEntries returns the newest entries first.
	ListRecentEntries(ctx context.Context, limit int) ([]models.JobLogEntry, error)
}
