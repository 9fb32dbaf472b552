// Package geom holds the pure geometric primitives behind hit testing:
// hit-slop expansion, inclusive containment, and segment/rect
// intersection. Everything operates on viewport coordinates and carries no
// state.
package geom

import (
	"math"

	"github.com/xkilldash9x/presage/api/schemas"
)

// Expand grows rect outward by the given hit slop. Negative slop sides are
// clamped to zero first, so the result is never smaller than the input.
func Expand(r schemas.Rect, s schemas.HitSlop) schemas.Rect {
	return schemas.Rect{
		Top:    r.Top - math.Max(0, s.Top),
		Left:   r.Left - math.Max(0, s.Left),
		Right:  r.Right + math.Max(0, s.Right),
		Bottom: r.Bottom + math.Max(0, s.Bottom),
	}
}

// PointInRect reports whether p lies inside r, boundary included.
func PointInRect(p schemas.Point, r schemas.Rect) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// SegmentIntersectsRect reports whether the segment from p0 to p1 crosses,
// touches, or originates inside r. A degenerate segment (p0 == p1)
// degrades to a point test, and a segment lying exactly along a rect edge
// counts as intersecting.
//
// Implemented as Liang-Barsky parametric clipping: the segment is clipped
// against each of the four half-planes and intersects iff a non-empty
// parameter interval survives.
func SegmentIntersectsRect(p0, p1 schemas.Point, r schemas.Rect) bool {
	dx := p1.X - p0.X
	dy := p1.Y - p0.Y

	t0, t1 := 0.0, 1.0

	clip := func(p, q float64) bool {
		if p == 0 {
			// Parallel to this boundary; outside it means no hit at all.
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
		return true
	}

	return clip(-dx, p0.X-r.Left) &&
		clip(dx, r.Right-p0.X) &&
		clip(-dy, p0.Y-r.Top) &&
		clip(dy, r.Bottom-p0.Y)
}

// RectsEqual reports exact numeric equality of all four sides. It exists
// to suppress redundant update notifications, not for hit testing.
func RectsEqual(a, b schemas.Rect) bool {
	return a == b
}
