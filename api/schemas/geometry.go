package schemas

import "time"

// Point is an immutable snapshot of a 2D viewport coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the rect.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of the rect.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Center returns the midpoint of the rect.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// HitSlop is invisible padding that enlarges an element's effective hit
// area beyond its rendered bounds. Sides are independent and must be
// non-negative; consumers clamp negative values to zero before use.
type HitSlop struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// UniformHitSlop returns a HitSlop with the same padding on every side.
func UniformHitSlop(v float64) HitSlop {
	return HitSlop{Top: v, Left: v, Right: v, Bottom: v}
}

// ElementBounds groups the natural rect of an element with the slop-expanded
// rect actually used for hit testing. ExpandedRect is always OriginalRect
// grown outward by HitSlop and is never smaller than OriginalRect.
type ElementBounds struct {
	OriginalRect Rect    `json:"original_rect"`
	ExpandedRect Rect    `json:"expanded_rect"`
	HitSlop      HitSlop `json:"hit_slop"`
}

// PositionSample is one entry of the pointer position history.
type PositionSample struct {
	Point Point     `json:"point"`
	Time  time.Time `json:"time"`
}
