package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint used when none is configured.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the model identifier used when none is configured.
	DefaultModel = "gpt-4o-mini"
	// DefaultTimeout bounds a single provider call. There is no retry within
	// one user's computation: a failed call degrades to fallback immediately.
	DefaultTimeout = 15 * time.Second
)

const systemPrompt = "You are the recommendation engine of a travel spot app. " +
	"You receive one user's browsing history (interactions) and the full candidate spot list (target_spots), " +
	"which includes spots the user has not seen yet. Infer the user's taste from tags, descriptions and dwell time, " +
	"assign every candidate a relevance score from 0 to 100, favor unseen spots that match the inferred taste, " +
	"and report the result by calling the " + ToolName + " tool exactly once."

// Config holds the environment-supplied settings for the OpenAI-backed provider.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIProvider calls an OpenAI-compatible chat completions API with a
// forced tool choice, so the only acceptable response is an invocation of
// the scoring tool.
type OpenAIProvider struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*ToolCall]
	cfg     Config
	logger  zerolog.Logger
}

// NewOpenAIProvider creates a provider client. The circuit breaker opens
// after repeated transport failures so that a hard-down provider
// short-circuits the rest of the batch straight to fallback instead of
// burning the per-call timeout on every user.
func NewOpenAIProvider(cfg Config, logger zerolog.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[*ToolCall](gobreaker.Settings{
		Name:    "scoring-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Rate limiting and schema violations mean the transport is
			// alive; only transport failures should open the breaker.
			return err == nil ||
				errors.Is(err, ErrRateLimited) ||
				isSchemaError(err)
		},
	})

	return &OpenAIProvider{
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		cfg:     cfg,
		logger:  logger.With().Str("component", "scoring-provider").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []any         `json:"tools"`
	ToolChoice any           `json:"tool_choice"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Score performs one bounded provider call for one user.
func (p *OpenAIProvider) Score(ctx context.Context, req ScoreRequest) (*ToolCall, error) {
	call, err := p.breaker.Execute(func() (*ToolCall, error) {
		return p.score(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrProviderUnavailable)
	}
	return call, err
}

func (p *OpenAIProvider) score(ctx context.Context, req ScoreRequest) (*ToolCall, error) {
	userContent, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(userContent)},
		},
		Tools: []any{ToolSchema()},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]any{"name": ToolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			p.logger.Warn().Int64("user_id", req.UserID).Dur("elapsed", time.Since(start)).
				Msg("Provider call timed out")
			return nil, fmt.Errorf("%w after %v", ErrProviderTimeout, p.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
		return nil, fmt.Errorf("%w: status %d: %s",
			ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, &SchemaError{Detail: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if len(chat.Choices) == 0 {
		return nil, &SchemaError{Detail: "response has no choices"}
	}

	msg := chat.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		// The provider answered in prose instead of invoking the tool.
		return nil, &SchemaError{
			Detail:  "response contains no tool invocation",
			Snippet: truncate(msg.Content, snippetLimit),
		}
	}

	tc := msg.ToolCalls[0]
	p.logger.Debug().Int64("user_id", req.UserID).Dur("elapsed", time.Since(start)).
		Str("tool", tc.Function.Name).Msg("Provider call complete")

	return &ToolCall{
		Name:      tc.Function.Name,
		Arguments: []byte(tc.Function.Arguments),
	}, nil
}

func isSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
