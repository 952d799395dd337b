package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/tripnotes/spotrank/pkg/models"
)

// InteractionStore reads interaction aggregates. The pipeline never writes
// them; they are owned by the surrounding application.
type InteractionStore struct {
	db *gorm.DB
}

// NewInteractionStore creates an InteractionStore.
func NewInteractionStore(store *Store) *InteractionStore {
	return &InteractionStore{db: store.DB}
}

// GetUserInteractions returns all aggregates for one user, ordered by spot ID.
func (s *InteractionStore) GetUserInteractions(ctx context.Context, userID int64) ([]models.InteractionAggregate, error) {
	var rows []UserSpotInteraction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("spot_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.InteractionAggregate, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.InteractionAggregate{
			UserID:            row.UserID,
			SpotID:            row.SpotID,
			ViewCount:         row.ViewCount,
			TotalDurationMs:   row.TotalDurationMs,
			LastViewedAtEpoch: row.LastViewedAtEpoch,
		})
	}
	return out, nil
}

// ListUserIDsWithInteractions returns every user ID that has interaction
// history, ascending. This is the global scope's user set.
func (s *InteractionStore) ListUserIDsWithInteractions(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&UserSpotInteraction{}).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetGlobalViewCounts returns total views per spot across all users.
func (s *InteractionStore) GetGlobalViewCounts(ctx context.Context) (map[int64]uint64, error) {
	var rows []struct {
		SpotID     int64
		TotalViews uint64
	}
	err := s.db.WithContext(ctx).
		Model(&UserSpotInteraction{}).
		Select("spot_id, SUM(view_count) AS total_views").
		Group("spot_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[int64]uint64, len(rows))
	for _, row := range rows {
		out[row.SpotID] = row.TotalViews
	}
	return out, nil
}
