package schemas

import "time"

// Clamp bounds for every numeric setting. Out-of-range values are clamped
// to the nearest bound, never rejected.
const (
	MinPositionHistorySize = 2
	MaxPositionHistorySize = 30

	MinTrajectoryPredictionTime = 10 * time.Millisecond
	MaxTrajectoryPredictionTime = 200 * time.Millisecond

	MinScrollMargin = 30.0
	MaxScrollMargin = 300.0

	MinTabOffset = 0
	MaxTabOffset = 20

	MinHitSlopSide = 0.0
	MaxHitSlopSide = 2000.0
)

// Defaults applied when a setting is never configured.
const (
	DefaultPositionHistorySize      = 8
	DefaultTrajectoryPredictionTime = 120 * time.Millisecond
	DefaultScrollMargin             = 150.0
	DefaultTabOffset                = 2
)

// DefaultSettings returns the configuration used when nothing is set:
// all prediction modes on, zero default hit slop.
func DefaultSettings() Settings {
	return Settings{
		EnableMousePrediction:    true,
		EnableTabPrediction:      true,
		EnableScrollPrediction:   true,
		PositionHistorySize:      DefaultPositionHistorySize,
		TrajectoryPredictionTime: DefaultTrajectoryPredictionTime,
		ScrollMargin:             DefaultScrollMargin,
		TabOffset:                DefaultTabOffset,
	}
}

// Settings is the validated engine configuration. Instances handed out by
// the engine are copies; callers cannot mutate live state through them.
type Settings struct {
	EnableMousePrediction  bool `json:"enable_mouse_prediction"`
	EnableTabPrediction    bool `json:"enable_tab_prediction"`
	EnableScrollPrediction bool `json:"enable_scroll_prediction"`

	// PositionHistorySize bounds the pointer position history used for
	// velocity estimation. Shrinking it truncates existing history.
	PositionHistorySize int `json:"position_history_size"`

	// TrajectoryPredictionTime is how far ahead the pointer position is
	// extrapolated.
	TrajectoryPredictionTime time.Duration `json:"trajectory_prediction_time"`

	// ScrollMargin is the distance, in the inferred scroll direction, at
	// which the predicted scroll endpoint is placed.
	ScrollMargin float64 `json:"scroll_margin"`

	// TabOffset is how many tab stops beyond the newly focused element are
	// considered interaction candidates.
	TabOffset int `json:"tab_offset"`

	// DefaultHitSlop applies to registrations without a per-element slop.
	DefaultHitSlop HitSlop `json:"default_hit_slop"`
}

// SettingsUpdate is a partial settings mutation. Nil fields are left
// untouched; set fields are clamped and then applied only if they differ
// from the stored value.
type SettingsUpdate struct {
	EnableMousePrediction  *bool `json:"enable_mouse_prediction,omitempty"`
	EnableTabPrediction    *bool `json:"enable_tab_prediction,omitempty"`
	EnableScrollPrediction *bool `json:"enable_scroll_prediction,omitempty"`

	PositionHistorySize      *int           `json:"position_history_size,omitempty"`
	TrajectoryPredictionTime *time.Duration `json:"trajectory_prediction_time,omitempty"`
	ScrollMargin             *float64       `json:"scroll_margin,omitempty"`
	TabOffset                *int           `json:"tab_offset,omitempty"`
	DefaultHitSlop           *HitSlop       `json:"default_hit_slop,omitempty"`
}
