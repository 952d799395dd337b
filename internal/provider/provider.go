// Package provider abstracts the external generative scoring service behind
// a tool-call protocol.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy for provider failures. Every one of these degrades the
// affected user to the fallback scorer; none of them aborts a batch.
var (
	// ErrProviderUnavailable marks transport-level failures: connection
	// refused, DNS, 5xx responses, or an open circuit breaker.
	ErrProviderUnavailable = errors.New("scoring provider unavailable")
	// ErrProviderTimeout marks a call that exceeded its bounded wait.
	ErrProviderTimeout = errors.New("scoring provider timed out")
	// ErrRateLimited marks an explicit throttling response. The runner does
	// not retry within the same batch; the next scheduled invocation will.
	ErrRateLimited = errors.New("scoring provider rate limited")
)

// SchemaError reports a provider response that failed tool-call validation.
// It carries a snippet of the offending response for the job log.
type SchemaError struct {
	Detail  string
	Snippet string
}

func (e *SchemaError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("invalid tool-call response: %s", e.Detail)
	}
	return fmt.Sprintf("invalid tool-call response: %s (response: %s)", e.Detail, e.Snippet)
}

// InteractionSummary is one row of per-spot browsing history sent to the provider.
type InteractionSummary struct {
	SpotID           int64    `json:"spot_id"`
	Title            string   `json:"title"`
	Tags             []string `json:"tags,omitempty"`
	ViewCount        uint     `json:"view_count"`
	TotalViewSeconds float64  `json:"total_view_seconds"`
	LastViewedAt     string   `json:"last_viewed_at"`
}

// CandidateSpot is one spot eligible for scoring in this run.
type CandidateSpot struct {
	SpotID      int64    `json:"spot_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// ScoreRequest is the structured payload for one user's scoring call.
type ScoreRequest struct {
	UserID       int64                `json:"user_id"`
	Interactions []InteractionSummary `json:"interactions"`
	Candidates   []CandidateSpot      `json:"target_spots"`
}

// ToolCall is the provider's raw tool invocation. Arguments are untrusted
// JSON and must pass ValidateToolCall before use.
type ToolCall struct {
	Name      string
	Arguments []byte
}

// ScoringProvider is the capability interface for the external scorer.
// Implementations must honor ctx cancellation and bound every call.
type ScoringProvider interface {
	Score(ctx context.Context, req ScoreRequest) (*ToolCall, error)
}

// NullProvider is a deterministic in-process implementation for tests and
// for dry runs against a disabled provider. It returns the configured tool
// call or error without any network activity.
type NullProvider struct {
	Call *ToolCall
	Err  error
}

// Score returns the canned response.
func (p *NullProvider) Score(ctx context.Context, req ScoreRequest) (*ToolCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Call, nil
}
