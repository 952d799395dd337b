package gorm

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tripnotes/spotrank/pkg/models"
)

// RecommendationScoreStore persists per-(user, spot) scores with upsert semantics.
type RecommendationScoreStore struct {
	db *gorm.DB
}

// NewRecommendationScoreStore creates a RecommendationScoreStore.
func NewRecommendationScoreStore(store *Store) *RecommendationScoreStore {
	return &RecommendationScoreStore{db: store.DB}
}

// UpsertScores inserts or replaces the given scores for one user in a single
// transaction. Only the (user, spot) pairs present in scores are touched, so
// historical scores for spots outside this run's candidate set survive.
func (s *RecommendationScoreStore) UpsertScores(ctx context.Context, userID int64, scores []models.RecommendationScore) error {
	if len(scores) == 0 {
		return nil
	}

	rows := make([]RecommendationScore, 0, len(scores))
	for _, score := range scores {
		rows = append(rows, RecommendationScore{
			UserID:          userID,
			SpotID:          score.SpotID,
			Score:           models.ClampScore(score.Score),
			Source:          string(score.Source),
			Rationale:       toNullString(score.Rationale),
			ComputedAtEpoch: score.ComputedAtEpoch,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "spot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "source", "rationale", "computed_at_epoch",
			}),
		}).Create(&rows).Error
	})
}

// GetScoresForUser returns the user's current scores ordered by score
// descending, ties broken by spot ID ascending.
func (s *RecommendationScoreStore) GetScoresForUser(ctx context.Context, userID int64) ([]models.RecommendationScore, error) {
	var rows []RecommendationScore
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("score DESC, spot_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.RecommendationScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RecommendationScore{
			UserID:          row.UserID,
			SpotID:          row.SpotID,
			Score:           row.Score,
			Source:          models.ScoreSource(row.Source),
			Rationale:       row.Rationale.String,
			ComputedAtEpoch: row.ComputedAtEpoch,
		})
	}
	return out, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
