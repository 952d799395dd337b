package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*OpenAIProvider, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: timeout,
	}, zerolog.Nop())
	return p, srv
}

func sampleRequest() ScoreRequest {
	return ScoreRequest{
		UserID: 42,
		Interactions: []InteractionSummary{
			{SpotID: 1, Title: "Old Harbor", ViewCount: 5, TotalViewSeconds: 120, LastViewedAt: "2026-02-27T10:00:00Z"},
		},
		Candidates: []CandidateSpot{
			{SpotID: 1, Title: "Old Harbor"},
			{SpotID: 3, Title: "Cliff Walk"},
		},
	}
}

func TestOpenAIProvider_Success(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{
			"type":"function",
			"function":{"name":"store_user_recommendation_scores",
				"arguments":"{\"user_id\":42,\"scores\":[{\"spot_id\":3,\"score\":88}]}"}
		}]}}]}`))
	}, time.Second)

	call, err := p.Score(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotNil(t, call)
	assert.Equal(t, ToolName, call.Name)

	scores, err := ValidateToolCall(call, 42, candidateSet(1, 3))
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 88.0, scores[0].Score)
}

func TestOpenAIProvider_RateLimited(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, time.Second)

	_, err := p.Score(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestOpenAIProvider_ServerError(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}, time.Second)

	_, err := p.Score(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, 50*time.Millisecond)

	start := time.Now()
	_, err := p.Score(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "call must be bounded by the configured timeout")
}

func TestOpenAIProvider_ProseInsteadOfToolCall(t *testing.T) {
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Sure! Here are some scores: ..."}}]}`))
	}, time.Second)

	_, err := p.Score(context.Background(), sampleRequest())
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Snippet, "Sure!")
}

func TestOpenAIProvider_BreakerOpensAfterTransportFailures(t *testing.T) {
	var calls int
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusInternalServerError)
	}, time.Second)

	for i := 0; i < 5; i++ {
		_, err := p.Score(context.Background(), sampleRequest())
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	}
	reached := calls

	// Breaker is open: subsequent users fail fast without a network call.
	_, err := p.Score(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, reached, calls, "open breaker must not hit the network")
}

func TestOpenAIProvider_SchemaErrorsDoNotTripBreaker(t *testing.T) {
	var calls int
	p, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"prose"}}]}`))
	}, time.Second)

	for i := 0; i < 8; i++ {
		_, err := p.Score(context.Background(), sampleRequest())
		var se *SchemaError
		require.ErrorAs(t, err, &se)
	}
	assert.Equal(t, 8, calls, "schema failures keep the transport path open")
}

func TestNullProvider(t *testing.T) {
	canned := &ToolCall{Name: ToolName, Arguments: []byte(`{"user_id":1,"scores":[{"spot_id":1,"score":50}]}`)}
	p := &NullProvider{Call: canned}

	call, err := p.Score(context.Background(), ScoreRequest{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, canned, call)

	p = &NullProvider{Err: ErrRateLimited}
	_, err = p.Score(context.Background(), ScoreRequest{UserID: 1})
	assert.ErrorIs(t, err, ErrRateLimited)
}
