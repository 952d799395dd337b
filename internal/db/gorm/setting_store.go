package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tripnotes/spotrank/pkg/models"
)

// JobSettingStore persists per-scope scheduling state.
type JobSettingStore struct {
	db *gorm.DB
}

// NewJobSettingStore creates a JobSettingStore.
func NewJobSettingStore(store *Store) *JobSettingStore {
	return &JobSettingStore{db: store.DB}
}

// GetOrCreateSetting returns the setting for a scope, creating an enabled row
// with the given interval when absent. Creation races resolve to the existing
// row via DO NOTHING plus re-read.
func (s *JobSettingStore) GetOrCreateSetting(ctx context.Context, scope string, intervalHours uint) (*models.JobSetting, error) {
	if intervalHours == 0 {
		intervalHours = 1
	}

	row := RecommendationJobSetting{
		Scope:          scope,
		IntervalHours:  intervalHours,
		Enabled:        true,
		UpdatedAtEpoch: time.Now().UnixMilli(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}

	var found RecommendationJobSetting
	if err := s.db.WithContext(ctx).First(&found, "scope = ?", scope).Error; err != nil {
		return nil, err
	}

	setting := &models.JobSetting{
		Scope:         found.Scope,
		IntervalHours: found.IntervalHours,
		Enabled:       found.Enabled,
	}
	if found.LastRunAtEpoch.Valid {
		last := found.LastRunAtEpoch.Int64
		setting.LastRunAtEpoch = &last
	}
	return setting, nil
}

// ClaimRun advances last_run_at from the observed value to runStart under
// compare-and-swap semantics. A zero-row update means another run claimed the
// scope between our read and this write; the caller must abort as skipped.
func (s *JobSettingStore) ClaimRun(ctx context.Context, scope string, observed *int64, runStartEpoch int64) (bool, error) {
	updates := map[string]any{
		"last_run_at_epoch": runStartEpoch,
		"updated_at_epoch":  time.Now().UnixMilli(),
	}

	tx := s.db.WithContext(ctx).Model(&RecommendationJobSetting{})
	if observed == nil {
		tx = tx.Where("scope = ? AND last_run_at_epoch IS NULL", scope)
	} else {
		tx = tx.Where("scope = ? AND last_run_at_epoch = ?", scope, *observed)
	}

	res := tx.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetEnabled toggles a scope without touching its run history.
func (s *JobSettingStore) SetEnabled(ctx context.Context, scope string, enabled bool) error {
	res := s.db.WithContext(ctx).
		Model(&RecommendationJobSetting{}).
		Where("scope = ?", scope).
		Updates(map[string]any{
			"enabled":          enabled,
			"updated_at_epoch": time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
