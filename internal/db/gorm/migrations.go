package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations applies all schema migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: spot metadata and interaction aggregates.
		{
			ID: "001_spots_and_interactions",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Spot{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&UserSpotInteraction{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("spots", "user_spot_interactions")
			},
		},

		// Migration 002: recommendation scores.
		{
			ID: "002_recommendation_scores",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&RecommendationScore{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("recommendation_scores")
			},
		},

		// Migration 003: job settings and job logs.
		{
			ID: "003_job_scheduling",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&RecommendationJobSetting{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&RecommendationJobLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("recommendation_job_settings", "recommendation_job_logs")
			},
		},
	})

	return m.Migrate()
}
