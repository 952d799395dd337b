package models

// HeuristicConfig contains the tunable weights and thresholds for the
// fallback heuristic scorer. The exact constants are policy, not contract;
// the scorer only guarantees that more recent interaction and higher global
// popularity never lower a score.
type HeuristicConfig struct {
	// ColdStartBase is the floor score for spots the user has never seen.
	ColdStartBase float64 `json:"cold_start_base" koanf:"cold_start_base"`
	// ColdStartPopWeight scales the normalized global popularity on top of
	// ColdStartBase, so popular unseen spots rank ahead of obscure ones.
	ColdStartPopWeight float64 `json:"cold_start_pop_weight" koanf:"cold_start_pop_weight"`

	// PartialBase is the floor score for lightly explored spots.
	PartialBase float64 `json:"partial_base" koanf:"partial_base"`
	// PartialRecencyWeight rewards recent interaction within RecencyWindowDays.
	PartialRecencyWeight float64 `json:"partial_recency_weight" koanf:"partial_recency_weight"`
	// PartialIncompleteWeight rewards short dwell relative to TypicalDwellMs,
	// which suggests interest without full exploration.
	PartialIncompleteWeight float64 `json:"partial_incomplete_weight" koanf:"partial_incomplete_weight"`

	// ThoroughBase is the lowered floor for spots the user already knows well.
	ThoroughBase float64 `json:"thorough_base" koanf:"thorough_base"`
	// ThoroughRecencyWeight keeps a small recency signal in the lowered band.
	ThoroughRecencyWeight float64 `json:"thorough_recency_weight" koanf:"thorough_recency_weight"`

	// RecencyWindowDays is the window over which recency decays linearly to zero.
	RecencyWindowDays float64 `json:"recency_window_days" koanf:"recency_window_days"`
	// TypicalDwellMs is the dwell time treated as full exploration.
	TypicalDwellMs uint64 `json:"typical_dwell_ms" koanf:"typical_dwell_ms"`

	// ThoroughViewCount and ThoroughDwellMs classify an interaction as
	// thorough (both must be met).
	ThoroughViewCount uint   `json:"thorough_view_count" koanf:"thorough_view_count"`
	ThoroughDwellMs   uint64 `json:"thorough_dwell_ms" koanf:"thorough_dwell_ms"`

	// ExhaustiveViewCount and ExhaustiveDwellMs classify a spot as
	// exhaustively known (both must be met); such spots are removed from the
	// candidate set entirely and are not re-ranked.
	ExhaustiveViewCount uint   `json:"exhaustive_view_count" koanf:"exhaustive_view_count"`
	ExhaustiveDwellMs   uint64 `json:"exhaustive_dwell_ms" koanf:"exhaustive_dwell_ms"`
}

// DefaultHeuristicConfig returns the default heuristic tuning.
//
// Band layout with these defaults:
//
//	thorough: 10..15    (known spots, repeat recommendation is low value)
//	partial:  30..60    (recency + incompleteness blend)
//	unseen:   40..80    (popularity-driven cold start)
//
// so a popular unseen spot outranks a lightly explored one, which outranks
// a thoroughly explored one.
func DefaultHeuristicConfig() *HeuristicConfig {
	return &HeuristicConfig{
		ColdStartBase:           40,
		ColdStartPopWeight:      40,
		PartialBase:             30,
		PartialRecencyWeight:    15,
		PartialIncompleteWeight: 15,
		ThoroughBase:            10,
		ThoroughRecencyWeight:   5,
		RecencyWindowDays:       30,
		TypicalDwellMs:          300_000, // 5 minutes
		ThoroughViewCount:       3,
		ThoroughDwellMs:         60_000, // 1 minute
		ExhaustiveViewCount:     10,
		ExhaustiveDwellMs:       600_000, // 10 minutes
	}
}
