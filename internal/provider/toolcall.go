package provider

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/tripnotes/spotrank/pkg/models"
)

const (
	// ToolName is the single callable operation declared to the provider.
	ToolName = "store_user_recommendation_scores"
	// ToolSchemaVersion is the current tool-call schema revision.
	ToolSchemaVersion = "1.0"

	// snippetLimit caps how much of an invalid response is captured in the
	// job log for diagnosis.
	snippetLimit = 256
)

// toolArguments is the expected shape of the tool-call arguments.
// Decoded permissively; ValidateToolCall enforces the contract.
type toolArguments struct {
	UserID        int64           `json:"user_id"`
	SchemaVersion string          `json:"schema_version"`
	Scores        []toolScoreItem `json:"scores"`
}

type toolScoreItem struct {
	SpotID    *int64   `json:"spot_id"`
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// ToolSchema returns the JSON-schema declaration of the scoring tool, in the
// shape accepted by OpenAI-compatible chat completion APIs.
func ToolSchema() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name": ToolName,
			"description": "Store per-spot recommendation scores for one user. " +
				"Each entry carries a spot_id from the candidate set and a relevance score from 0 to 100; " +
				"rationale is an optional short explanation.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_id": map[string]any{
						"type":        "integer",
						"description": "ID of the user the scores belong to.",
					},
					"schema_version": map[string]any{
						"type": "string",
						"enum": []string{ToolSchemaVersion},
					},
					"scores": map[string]any{
						"type":        "array",
						"description": "One entry per candidate spot.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"spot_id": map[string]any{"type": "integer"},
								"score": map[string]any{
									"type":    "number",
									"minimum": 0,
									"maximum": 100,
								},
								"rationale": map[string]any{"type": "string"},
							},
							"required":             []string{"spot_id", "score"},
							"additionalProperties": false,
						},
					},
				},
				"required":             []string{"user_id", "scores"},
				"additionalProperties": false,
			},
		},
	}
}

// ToolSchemaJSON renders the tool schema as indented JSON for --print-tool-schema.
func ToolSchemaJSON() (string, error) {
	data, err := json.MarshalIndent([]map[string]any{ToolSchema()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tool schema: %w", err)
	}
	return string(data), nil
}

// ValidateToolCall validates an untrusted provider tool call against the
// candidate set and returns sanitized scores.
//
// Rules:
//   - the invoked tool must be ToolName;
//   - arguments must decode as the declared parameter object;
//   - every spot_id must belong to the candidate set;
//   - scores are clamped into [0,100], never rejected for range;
//   - duplicate spot_id entries keep the first occurrence.
//
// Any violation returns a *SchemaError carrying a response snippet; the
// caller branches to the fallback scorer on it.
func ValidateToolCall(call *ToolCall, userID int64, candidates map[int64]struct{}) ([]models.RecommendationScore, error) {
	if call == nil {
		return nil, &SchemaError{Detail: "provider returned no tool call"}
	}
	if call.Name != ToolName {
		return nil, &SchemaError{
			Detail:  fmt.Sprintf("unexpected tool %q, want %q", call.Name, ToolName),
			Snippet: snippet(call.Arguments),
		}
	}

	var args toolArguments
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return nil, &SchemaError{
			Detail:  fmt.Sprintf("arguments are not valid JSON for the declared schema: %v", err),
			Snippet: snippet(call.Arguments),
		}
	}
	if args.UserID != 0 && args.UserID != userID {
		return nil, &SchemaError{
			Detail:  fmt.Sprintf("user_id %d does not match requested user %d", args.UserID, userID),
			Snippet: snippet(call.Arguments),
		}
	}
	if len(args.Scores) == 0 {
		return nil, &SchemaError{
			Detail:  "scores array is missing or empty",
			Snippet: snippet(call.Arguments),
		}
	}

	seen := make(map[int64]struct{}, len(args.Scores))
	out := make([]models.RecommendationScore, 0, len(args.Scores))
	for i, item := range args.Scores {
		if item.SpotID == nil || item.Score == nil {
			return nil, &SchemaError{
				Detail:  fmt.Sprintf("scores[%d] is missing spot_id or score", i),
				Snippet: snippet(call.Arguments),
			}
		}
		if _, ok := candidates[*item.SpotID]; !ok {
			return nil, &SchemaError{
				Detail:  fmt.Sprintf("scores[%d] references spot %d outside the candidate set", i, *item.SpotID),
				Snippet: snippet(call.Arguments),
			}
		}
		if _, dup := seen[*item.SpotID]; dup {
			continue
		}
		seen[*item.SpotID] = struct{}{}

		out = append(out, models.RecommendationScore{
			UserID:    userID,
			SpotID:    *item.SpotID,
			Score:     models.ClampScore(*item.Score),
			Source:    models.SourceProvider,
			Rationale: item.Rationale,
		})
	}
	return out, nil
}

func snippet(data []byte) string {
	if len(data) > snippetLimit {
		return string(data[:snippetLimit]) + "..."
	}
	return string(data)
}
