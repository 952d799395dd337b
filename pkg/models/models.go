// Package models contains domain models for spotrank.
package models

import (
	"fmt"
	"time"
)

// ScoreSource identifies where a recommendation score came from.
type ScoreSource string

const (
	// SourceProvider marks scores returned by the external generative provider.
	SourceProvider ScoreSource = "provider"
	// SourceFallback marks scores computed by the local heuristic.
	SourceFallback ScoreSource = "fallback"
)

// RunStatus classifies the outcome of one scoring run.
type RunStatus string

const (
	// StatusSuccess means every scored user went through the provider path.
	StatusSuccess RunStatus = "success"
	// StatusDegraded means the run completed but at least one user fell back
	// to the heuristic, or a per-user error was contained.
	StatusDegraded RunStatus = "degraded"
	// StatusFailure means no score could be determined for the scope.
	StatusFailure RunStatus = "failure"
	// StatusSkipped means the scope was not due, or another run claimed it first.
	StatusSkipped RunStatus = "skipped"
)

// GlobalScope is the scheduling scope covering all users with interaction history.
const GlobalScope = "global"

// UserScope returns the scheduling scope key for a single user.
// Scope keys are the sole scheduling identity: a forced global run never
// resets per-user interval clocks and vice versa.
func UserScope(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// InteractionAggregate is a read-only per-(user, spot) browsing summary
// supplied by the interaction collaborator. Keyed uniquely by (UserID, SpotID).
type InteractionAggregate struct {
	UserID            int64  `json:"user_id"`
	SpotID            int64  `json:"spot_id"`
	ViewCount         uint   `json:"view_count"`
	TotalDurationMs   uint64 `json:"total_duration_ms"`
	LastViewedAtEpoch int64  `json:"last_viewed_at_epoch"`
}

// LastViewedAt returns the last-seen timestamp as time.Time.
func (a InteractionAggregate) LastViewedAt() time.Time {
	return time.UnixMilli(a.LastViewedAtEpoch)
}

// Spot is the read-only metadata of a point of interest, used to build
// provider payloads and the global popularity baseline.
type Spot struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// RecommendationScore is one current relevance score for a (user, spot) pair.
// Exactly one row exists per pair at any time: new computations overwrite.
type RecommendationScore struct {
	UserID          int64       `json:"user_id"`
	SpotID          int64       `json:"spot_id"`
	Score           float64     `json:"score"`
	Source          ScoreSource `json:"source"`
	Rationale       string      `json:"rationale,omitempty"`
	ComputedAtEpoch int64       `json:"computed_at_epoch"`
}

// JobSetting holds the scheduling state for one scope.
// LastRunAtEpoch is monotonically non-decreasing and mutated only by the
// Runner under a compare-and-swap discipline.
type JobSetting struct {
	Scope          string `json:"scope"`
	IntervalHours  uint   `json:"interval_hours"`
	Enabled        bool   `json:"enabled"`
	LastRunAtEpoch *int64 `json:"last_run_at_epoch,omitempty"`
}

// JobLogEntry is the durable record of one run attempt. Append-only.
type JobLogEntry struct {
	RunID           string    `json:"run_id"`
	Scope           string    `json:"scope"`
	Status          RunStatus `json:"status"`
	ScoredCount     uint      `json:"scored_count"`
	UsersProcessed  uint      `json:"users_processed"`
	UsersFallback   uint      `json:"users_fallback"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	StartedAtEpoch  int64     `json:"started_at_epoch"`
	FinishedAtEpoch int64     `json:"finished_at_epoch"`
}

// ClampScore clamps a score into the [0,100] contract range.
// Out-of-range provider values are clamped, not rejected, to tolerate
// minor model drift.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
