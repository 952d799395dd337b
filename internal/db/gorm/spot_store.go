package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/tripnotes/spotrank/pkg/models"
)

// SpotStore reads spot metadata.
type SpotStore struct {
	db *gorm.DB
}

// NewSpotStore creates a SpotStore.
func NewSpotStore(store *Store) *SpotStore {
	return &SpotStore{db: store.DB}
}

// ListSpots returns all spots ordered by ID.
func (s *SpotStore) ListSpots(ctx context.Context) ([]models.Spot, error) {
	var rows []Spot
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.Spot, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Spot{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			Tags:        []string(row.Tags),
		})
	}
	return out, nil
}
