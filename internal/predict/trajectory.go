// Package predict implements the pure prediction algorithms: mouse
// trajectory extrapolation from a bounded position history, scroll
// direction inference with endpoint projection, and tab-offset target
// selection. Functions here hold no state; the engine owns the inputs and
// decides what to do with the outputs.
package predict

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/xkilldash9x/presage/api/schemas"
)

// maxPointerSpeed caps the fitted velocity magnitude in px/s. Timestamp
// glitches in the input stream can otherwise produce predictions far
// outside the viewport.
const maxPointerSpeed = 20000.0

// PredictPoint extrapolates where the pointer will be after lookahead,
// given the current point and the history of prior samples (oldest first,
// excluding current). Velocity is fitted per axis with a least-squares
// regression over the history, so a longer history smooths jitter while a
// short one stays reactive. With fewer than two history samples there is
// no velocity to fit and the current point is returned unchanged; the same
// holds for a zero lookahead.
func PredictPoint(current schemas.Point, history []schemas.PositionSample, lookahead time.Duration) schemas.Point {
	if len(history) < 2 || lookahead <= 0 {
		return current
	}

	vx, vy, ok := fitVelocity(history)
	if !ok {
		return current
	}

	dt := lookahead.Seconds()
	return schemas.Point{
		X: current.X + vx*dt,
		Y: current.Y + vy*dt,
	}
}

// fitVelocity returns the per-axis velocity in px/s estimated from the
// samples, or ok=false when the samples carry no usable time spread.
func fitVelocity(history []schemas.PositionSample) (vx, vy float64, ok bool) {
	base := history[0].Time

	ts := make([]float64, len(history))
	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, s := range history {
		ts[i] = s.Time.Sub(base).Seconds()
		xs[i] = s.Point.X
		ys[i] = s.Point.Y
	}

	if ts[len(ts)-1] <= 0 {
		return 0, 0, false
	}

	_, vx = stat.LinearRegression(ts, xs, nil, false)
	_, vy = stat.LinearRegression(ts, ys, nil, false)

	if math.IsNaN(vx) || math.IsInf(vx, 0) || math.IsNaN(vy) || math.IsInf(vy, 0) {
		return 0, 0, false
	}

	speed := math.Hypot(vx, vy)
	if speed > maxPointerSpeed {
		scale := maxPointerSpeed / speed
		vx *= scale
		vy *= scale
	}
	return vx, vy, true
}
