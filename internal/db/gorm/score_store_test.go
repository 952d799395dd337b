package gorm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripnotes/spotrank/pkg/models"
)

func TestScoreStore_UpsertAndRead(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	scoreStore := NewRecommendationScoreStore(store)

	scores := []models.RecommendationScore{
		{SpotID: 1, Score: 72.5, Source: models.SourceProvider, Rationale: "matches hiking tags", ComputedAtEpoch: 1000},
		{SpotID: 2, Score: 33, Source: models.SourceFallback, ComputedAtEpoch: 1000},
		{SpotID: 3, Score: 72.5, Source: models.SourceProvider, ComputedAtEpoch: 1000},
	}
	require.NoError(t, scoreStore.UpsertScores(ctx, 7, scores))

	got, err := scoreStore.GetScoresForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered score descending, ties by spot ID ascending.
	assert.Equal(t, int64(1), got[0].SpotID)
	assert.Equal(t, int64(3), got[1].SpotID)
	assert.Equal(t, int64(2), got[2].SpotID)
	assert.Equal(t, "matches hiking tags", got[0].Rationale)
	assert.Equal(t, models.SourceProvider, got[0].Source)
}

func TestScoreStore_UpsertReplacesExistingPair(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	scoreStore := NewRecommendationScoreStore(store)

	first := []models.RecommendationScore{
		{SpotID: 1, Score: 80, Source: models.SourceProvider, Rationale: "initial", ComputedAtEpoch: 1000},
		{SpotID: 2, Score: 60, Source: models.SourceProvider, ComputedAtEpoch: 1000},
	}
	require.NoError(t, scoreStore.UpsertScores(ctx, 7, first))

	// Rescore only spot 1. Spot 2 must survive untouched.
	second := []models.RecommendationScore{
		{SpotID: 1, Score: 15, Source: models.SourceFallback, ComputedAtEpoch: 2000},
	}
	require.NoError(t, scoreStore.UpsertScores(ctx, 7, second))

	got, err := scoreStore.GetScoresForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(2), got[0].SpotID)
	assert.Equal(t, 60.0, got[0].Score)
	assert.Equal(t, int64(1000), got[0].ComputedAtEpoch)

	assert.Equal(t, int64(1), got[1].SpotID)
	assert.Equal(t, 15.0, got[1].Score)
	assert.Equal(t, models.SourceFallback, got[1].Source)
	assert.Equal(t, "", got[1].Rationale)
	assert.Equal(t, int64(2000), got[1].ComputedAtEpoch)

	// Still exactly one row per pair.
	var count int64
	store.DB.Model(&RecommendationScore{}).Where("user_id = ?", 7).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestScoreStore_NoCrossUserLeakage(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	scoreStore := NewRecommendationScoreStore(store)

	require.NoError(t, scoreStore.UpsertScores(ctx, 1, []models.RecommendationScore{
		{SpotID: 10, Score: 50, Source: models.SourceFallback, ComputedAtEpoch: 1000},
	}))
	require.NoError(t, scoreStore.UpsertScores(ctx, 2, []models.RecommendationScore{
		{SpotID: 10, Score: 90, Source: models.SourceProvider, ComputedAtEpoch: 1000},
	}))

	got1, err := scoreStore.GetScoresForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got1, 1)
	assert.Equal(t, 50.0, got1[0].Score)

	got2, err := scoreStore.GetScoresForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got2, 1)
	assert.Equal(t, 90.0, got2[0].Score)
}

func TestScoreStore_ClampsOnWrite(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	scoreStore := NewRecommendationScoreStore(store)

	require.NoError(t, scoreStore.UpsertScores(ctx, 7, []models.RecommendationScore{
		{SpotID: 1, Score: 150, Source: models.SourceProvider, ComputedAtEpoch: 1000},
		{SpotID: 2, Score: -5, Source: models.SourceProvider, ComputedAtEpoch: 1000},
	}))

	got, err := scoreStore.GetScoresForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Score)
	assert.Equal(t, 0.0, got[1].Score)
}

func TestScoreStore_EmptyBatchIsNoop(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	scoreStore := NewRecommendationScoreStore(store)
	require.NoError(t, scoreStore.UpsertScores(context.Background(), 7, nil))

	got, err := scoreStore.GetScoresForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, got)
}
