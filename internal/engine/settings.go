package engine

import (
	"math"
	"time"

	"github.com/xkilldash9x/presage/api/schemas"
)

// settingsStore holds the validated engine settings. Every numeric passes
// through its [min,max] clamp on the way in, both at construction and on
// update, so the rest of the engine never sees an out-of-range value.
// Updates are equality gated: applying a value identical to the stored one
// reports no change and triggers no side effects.
type settingsStore struct {
	s schemas.Settings
}

// applyResult reports what an update actually changed, so the engine can
// run exactly the side effects the change requires.
type applyResult struct {
	changed bool
	// historyShrunk means the position history cap got smaller and
	// existing history must be truncated.
	historyShrunk bool
	// defaultSlopChanged means elements without a per-element override
	// need their expanded bounds recomputed.
	defaultSlopChanged bool
}

func newSettingsStore(initial schemas.Settings) settingsStore {
	return settingsStore{s: clampSettings(initial)}
}

// snapshot returns a copy of the current settings.
func (st *settingsStore) snapshot() schemas.Settings {
	return st.s
}

// apply merges a partial update into the store, clamping each set field.
func (st *settingsStore) apply(u schemas.SettingsUpdate) applyResult {
	var res applyResult

	setBool := func(dst *bool, v *bool) {
		if v != nil && *dst != *v {
			*dst = *v
			res.changed = true
		}
	}
	setBool(&st.s.EnableMousePrediction, u.EnableMousePrediction)
	setBool(&st.s.EnableTabPrediction, u.EnableTabPrediction)
	setBool(&st.s.EnableScrollPrediction, u.EnableScrollPrediction)

	if u.PositionHistorySize != nil {
		v := clampInt(*u.PositionHistorySize, schemas.MinPositionHistorySize, schemas.MaxPositionHistorySize)
		if v != st.s.PositionHistorySize {
			res.historyShrunk = v < st.s.PositionHistorySize
			st.s.PositionHistorySize = v
			res.changed = true
		}
	}
	if u.TrajectoryPredictionTime != nil {
		v := clampDuration(*u.TrajectoryPredictionTime, schemas.MinTrajectoryPredictionTime, schemas.MaxTrajectoryPredictionTime)
		if v != st.s.TrajectoryPredictionTime {
			st.s.TrajectoryPredictionTime = v
			res.changed = true
		}
	}
	if u.ScrollMargin != nil {
		v := clampFloat(*u.ScrollMargin, schemas.MinScrollMargin, schemas.MaxScrollMargin)
		if v != st.s.ScrollMargin {
			st.s.ScrollMargin = v
			res.changed = true
		}
	}
	if u.TabOffset != nil {
		v := clampInt(*u.TabOffset, schemas.MinTabOffset, schemas.MaxTabOffset)
		if v != st.s.TabOffset {
			st.s.TabOffset = v
			res.changed = true
		}
	}
	if u.DefaultHitSlop != nil {
		v := clampHitSlop(*u.DefaultHitSlop)
		if v != st.s.DefaultHitSlop {
			st.s.DefaultHitSlop = v
			res.changed = true
			res.defaultSlopChanged = true
		}
	}

	return res
}

func clampSettings(s schemas.Settings) schemas.Settings {
	s.PositionHistorySize = clampInt(s.PositionHistorySize, schemas.MinPositionHistorySize, schemas.MaxPositionHistorySize)
	s.TrajectoryPredictionTime = clampDuration(s.TrajectoryPredictionTime, schemas.MinTrajectoryPredictionTime, schemas.MaxTrajectoryPredictionTime)
	s.ScrollMargin = clampFloat(s.ScrollMargin, schemas.MinScrollMargin, schemas.MaxScrollMargin)
	s.TabOffset = clampInt(s.TabOffset, schemas.MinTabOffset, schemas.MaxTabOffset)
	s.DefaultHitSlop = clampHitSlop(s.DefaultHitSlop)
	return s
}

func clampHitSlop(h schemas.HitSlop) schemas.HitSlop {
	return schemas.HitSlop{
		Top:    clampFloat(h.Top, schemas.MinHitSlopSide, schemas.MaxHitSlopSide),
		Left:   clampFloat(h.Left, schemas.MinHitSlopSide, schemas.MaxHitSlopSide),
		Right:  clampFloat(h.Right, schemas.MinHitSlopSide, schemas.MaxHitSlopSide),
		Bottom: clampFloat(h.Bottom, schemas.MinHitSlopSide, schemas.MaxHitSlopSide),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
