package engine

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripnotes/spotrank/internal/heuristic"
	"github.com/tripnotes/spotrank/internal/provider"
	"github.com/tripnotes/spotrank/pkg/models"
)

type fakeReader struct {
	interactions map[int64][]models.InteractionAggregate
	globalViews  map[int64]uint64
}

func (f *fakeReader) GetUserInteractions(_ context.Context, userID int64) ([]models.InteractionAggregate, error) {
	return f.interactions[userID], nil
}

func (f *fakeReader) ListUserIDsWithInteractions(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.interactions))
	for id := range f.interactions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeReader) GetGlobalViewCounts(_ context.Context) (map[int64]uint64, error) {
	return f.globalViews, nil
}

type fakeSpots struct {
	spots []models.Spot
}

func (f *fakeSpots) ListSpots(_ context.Context) ([]models.Spot, error) {
	return f.spots, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T, prov provider.ScoringProvider) (*Engine, *fakeReader, *fakeSpots) {
	t.Helper()

	reader := &fakeReader{
		interactions: map[int64][]models.InteractionAggregate{
			7: {
				{UserID: 7, SpotID: 1, ViewCount: 5, TotalDurationMs: 120_000, LastViewedAtEpoch: testNow.Add(-24 * time.Hour).UnixMilli()},
				{UserID: 7, SpotID: 2, ViewCount: 1, TotalDurationMs: 3_000, LastViewedAtEpoch: testNow.Add(-48 * time.Hour).UnixMilli()},
			},
		},
		globalViews: map[int64]uint64{1: 6, 2: 1, 3: 40},
	}
	spots := &fakeSpots{spots: []models.Spot{
		{ID: 1, Title: "Old Town Walk"},
		{ID: 2, Title: "Harbor Museum"},
		{ID: 3, Title: "Sunset Ridge", Tags: []string{"hiking"}},
	}}

	eng := New(reader, spots, prov, heuristic.NewScorer(nil), zerolog.Nop())
	eng.WithNow(func() time.Time { return testNow })
	return eng, reader, spots
}

func toolCallFor(t *testing.T, userID int64, scores map[int64]float64) *provider.ToolCall {
	t.Helper()

	items := make([]map[string]any, 0, len(scores))
	for spotID, score := range scores {
		items = append(items, map[string]any{"spot_id": spotID, "score": score, "rationale": "fits profile"})
	}
	args, err := json.Marshal(map[string]any{
		"user_id":        userID,
		"schema_version": provider.ToolSchemaVersion,
		"scores":         items,
	})
	require.NoError(t, err)
	return &provider.ToolCall{Name: provider.ToolName, Arguments: args}
}

func TestEngine_ProviderPath(t *testing.T) {
	prov := &provider.NullProvider{Call: nil}
	eng, _, _ := testEngine(t, prov)
	prov.Call = toolCallFor(t, 7, map[int64]float64{1: 12, 2: 55, 3: 90})

	res, err := eng.ComputeScoresForUser(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NoError(t, res.Err)
	assert.Equal(t, models.SourceProvider, res.Source)
	require.Len(t, res.Scores, 3)

	for _, s := range res.Scores {
		assert.Equal(t, models.SourceProvider, s.Source)
		assert.Equal(t, testNow.UnixMilli(), s.ComputedAtEpoch)
		assert.Equal(t, int64(7), s.UserID)
	}
}

func TestEngine_FallbackOnProviderError(t *testing.T) {
	prov := &provider.NullProvider{Err: provider.ErrProviderUnavailable}
	eng, _, _ := testEngine(t, prov)

	res, err := eng.ComputeScoresForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, provider.ErrProviderUnavailable)
	assert.Equal(t, models.SourceFallback, res.Source)
	require.Len(t, res.Scores, 3)

	byID := make(map[int64]float64, len(res.Scores))
	for _, s := range res.Scores {
		assert.Equal(t, models.SourceFallback, s.Source)
		byID[s.SpotID] = s.Score
	}
	// Popular unseen spot beats the lightly explored one, which beats the
	// thoroughly explored one.
	assert.Greater(t, byID[3], byID[2])
	assert.Greater(t, byID[2], byID[1])
}

func TestEngine_FallbackOnSchemaViolation(t *testing.T) {
	// Provider scores a spot outside the candidate set.
	prov := &provider.NullProvider{}
	eng, _, _ := testEngine(t, prov)
	prov.Call = toolCallFor(t, 7, map[int64]float64{99: 50})

	res, err := eng.ComputeScoresForUser(context.Background(), 7)
	require.NoError(t, err)

	var schemaErr *provider.SchemaError
	assert.ErrorAs(t, res.Err, &schemaErr)
	assert.Equal(t, models.SourceFallback, res.Source)
	assert.Len(t, res.Scores, 3)
}

func TestEngine_NoProviderConfigured(t *testing.T) {
	eng, _, _ := testEngine(t, nil)

	res, err := eng.ComputeScoresForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, models.SourceFallback, res.Source)
	assert.Len(t, res.Scores, 3)
}

func TestEngine_NoInteractionsMeansEmptyResult(t *testing.T) {
	eng, _, _ := testEngine(t, nil)

	res, err := eng.ComputeScoresForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, res.Scores)
	assert.NoError(t, res.Err)
}

func TestEngine_ExhaustiveSpotsLeaveCandidateSet(t *testing.T) {
	eng, reader, _ := testEngine(t, nil)
	reader.interactions[7] = append(reader.interactions[7], models.InteractionAggregate{
		UserID: 7, SpotID: 3, ViewCount: 20, TotalDurationMs: 900_000,
		LastViewedAtEpoch: testNow.Add(-time.Hour).UnixMilli(),
	})

	res, err := eng.ComputeScoresForUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, res.Scores, 2)
	for _, s := range res.Scores {
		assert.NotEqual(t, int64(3), s.SpotID)
	}
}

func TestEngine_AllCandidatesExhausted(t *testing.T) {
	eng, reader, spots := testEngine(t, nil)
	spots.spots = spots.spots[:1]
	reader.interactions[7] = []models.InteractionAggregate{
		{UserID: 7, SpotID: 1, ViewCount: 20, TotalDurationMs: 900_000, LastViewedAtEpoch: testNow.UnixMilli()},
	}

	res, err := eng.ComputeScoresForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, res.Scores)
	assert.NoError(t, res.Err)
}
