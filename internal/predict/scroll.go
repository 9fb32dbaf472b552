package predict

import (
	"math"

	"github.com/xkilldash9x/presage/api/schemas"
)

// minScrollDelta is the movement, in px, below which a rect shift is
// treated as jitter rather than scrolling.
const minScrollDelta = 0.5

// InferScrollDirection classifies the dominant scroll direction from an
// element's rect before and after a position update. Scrolling down moves
// content up, so a decreasing top edge means the user scrolled down. Ties
// go to the vertical axis; movement under minScrollDelta on both axes is
// ScrollNone.
func InferScrollDirection(oldRect, newRect schemas.Rect) schemas.ScrollDirection {
	dx := newRect.Left - oldRect.Left
	dy := newRect.Top - oldRect.Top

	if math.Abs(dx) < minScrollDelta && math.Abs(dy) < minScrollDelta {
		return schemas.ScrollNone
	}

	if math.Abs(dy) >= math.Abs(dx) {
		if dy < 0 {
			return schemas.ScrollDown
		}
		return schemas.ScrollUp
	}
	if dx < 0 {
		return schemas.ScrollRight
	}
	return schemas.ScrollLeft
}

// ProjectScrollPoint places the predicted scroll endpoint at margin px
// from the current pointer position, in the direction content is expected
// to arrive from. Elements currently that far away in viewport terms end
// up under the cursor once the scroll completes. ScrollNone projects
// nowhere and returns the current point.
func ProjectScrollPoint(current schemas.Point, dir schemas.ScrollDirection, margin float64) schemas.Point {
	switch dir {
	case schemas.ScrollDown:
		return schemas.Point{X: current.X, Y: current.Y + margin}
	case schemas.ScrollUp:
		return schemas.Point{X: current.X, Y: current.Y - margin}
	case schemas.ScrollRight:
		return schemas.Point{X: current.X + margin, Y: current.Y}
	case schemas.ScrollLeft:
		return schemas.Point{X: current.X - margin, Y: current.Y}
	default:
		return current
	}
}
