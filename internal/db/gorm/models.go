package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/tripnotes/spotrank/pkg/models"
)

// GORM row types. Field order optimized for memory alignment.

// Spot holds the point-of-interest metadata shown to the provider.
type Spot struct {
	Title       string                 `gorm:"type:text;not null"`
	Description string                 `gorm:"type:text"`
	Tags        models.JSONStringArray `gorm:"type:text"`
	ID          int64                  `gorm:"primaryKey;autoIncrement"`
}

func (Spot) TableName() string { return "spots" }

// UserSpotInteraction is one per-(user, spot) browsing aggregate.
type UserSpotInteraction struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	UserID            int64  `gorm:"uniqueIndex:idx_interactions_user_spot,priority:1;index:idx_interactions_user;not null"`
	SpotID            int64  `gorm:"uniqueIndex:idx_interactions_user_spot,priority:2;not null"`
	ViewCount         uint   `gorm:"default:0;not null"`
	TotalDurationMs   uint64 `gorm:"default:0;not null"`
	LastViewedAtEpoch int64  `gorm:"not null"`
}

func (UserSpotInteraction) TableName() string { return "user_spot_interactions" }

// RecommendationScore is the single current score for a (user, spot) pair.
type RecommendationScore struct {
	Source          string         `gorm:"type:text;check:source IN ('provider', 'fallback');not null"`
	Rationale       sql.NullString `gorm:"type:text"`
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	UserID          int64          `gorm:"uniqueIndex:idx_scores_user_spot,priority:1;index:idx_scores_user;not null"`
	SpotID          int64          `gorm:"uniqueIndex:idx_scores_user_spot,priority:2;not null"`
	Score           float64        `gorm:"type:real;not null"`
	ComputedAtEpoch int64          `gorm:"not null"`
}

func (RecommendationScore) TableName() string { return "recommendation_scores" }

// BeforeCreate hook to ensure the computation timestamp is set.
func (r *RecommendationScore) BeforeCreate(tx *gorm.DB) error {
	if r.ComputedAtEpoch == 0 {
		r.ComputedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// RecommendationJobSetting is the per-scope scheduling row.
type RecommendationJobSetting struct {
	Scope          string        `gorm:"primaryKey;type:text"`
	LastRunAtEpoch sql.NullInt64 `gorm:"index:idx_job_settings_last_run"`
	IntervalHours  uint          `gorm:"default:1;not null"`
	Enabled        bool          `gorm:"default:true;not null"`
	UpdatedAtEpoch int64         `gorm:"not null"`
}

func (RecommendationJobSetting) TableName() string { return "recommendation_job_settings" }

// BeforeCreate hook to ensure the update timestamp is set.
func (s *RecommendationJobSetting) BeforeCreate(tx *gorm.DB) error {
	if s.UpdatedAtEpoch == 0 {
		s.UpdatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// RecommendationJobLog is one append-only run record.
type RecommendationJobLog struct {
	RunID           string         `gorm:"uniqueIndex;type:text;not null"`
	Scope           string         `gorm:"index:idx_job_logs_scope;not null"`
	Status          string         `gorm:"type:text;check:status IN ('success', 'degraded', 'failure', 'skipped');not null"`
	ErrorMessage    sql.NullString `gorm:"type:text"`
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	ScoredCount     uint           `gorm:"default:0;not null"`
	UsersProcessed  uint           `gorm:"default:0;not null"`
	UsersFallback   uint           `gorm:"default:0;not null"`
	StartedAtEpoch  int64          `gorm:"index:idx_job_logs_started,sort:desc;not null"`
	FinishedAtEpoch int64          `gorm:"not null"`
}

func (RecommendationJobLog) TableName() string { return "recommendation_job_logs" }
