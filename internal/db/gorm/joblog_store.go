package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/tripnotes/spotrank/pkg/models"
)

// JobLogStore appends and lists run records.
type JobLogStore struct {
	db *gorm.DB
}

// NewJobLogStore creates a JobLogStore.
func NewJobLogStore(store *Store) *JobLogStore {
	return &JobLogStore{db: store.DB}
}

// AppendEntry records exactly one entry for a run attempt.
func (s *JobLogStore) AppendEntry(ctx context.Context, entry *models.JobLogEntry) error {
	row := RecommendationJobLog{
		RunID:           entry.RunID,
		Scope:           entry.Scope,
		Status:          string(entry.Status),
		ScoredCount:     entry.ScoredCount,
		UsersProcessed:  entry.UsersProcessed,
		UsersFallback:   entry.UsersFallback,
		ErrorMessage:    toNullString(entry.ErrorMessage),
		StartedAtEpoch:  entry.StartedAtEpoch,
		FinishedAtEpoch: entry.FinishedAtEpoch,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// ListRecentEntries returns the newest entries first.
func (s *JobLogStore) ListRecentEntries(ctx context.Context, limit int) ([]models.JobLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []RecommendationJobLog
	err := s.db.WithContext(ctx).
		Order("started_at_epoch DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.JobLogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.JobLogEntry{
			RunID:           row.RunID,
			Scope:           row.Scope,
			Status:          models.RunStatus(row.Status),
			ScoredCount:     row.ScoredCount,
			UsersProcessed:  row.UsersProcessed,
			UsersFallback:   row.UsersFallback,
			ErrorMessage:    row.ErrorMessage.String,
			StartedAtEpoch:  row.StartedAtEpoch,
			FinishedAtEpoch: row.FinishedAtEpoch,
		})
	}
	return out, nil
}
