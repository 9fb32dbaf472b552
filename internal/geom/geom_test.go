// internal/geom/geom_test.go
package geom

import (
	"math"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/presage/api/schemas"
)

func TestExpand(t *testing.T) {
	r := schemas.Rect{Top: 100, Left: 50, Right: 150, Bottom: 140}

	t.Run("grows each side independently", func(t *testing.T) {
		got := Expand(r, schemas.HitSlop{Top: 1, Left: 2, Right: 3, Bottom: 4})
		assert.Equal(t, schemas.Rect{Top: 99, Left: 48, Right: 153, Bottom: 144}, got)
	})

	t.Run("zero slop is the identity", func(t *testing.T) {
		assert.Equal(t, r, Expand(r, schemas.HitSlop{}))
	})

	t.Run("negative slop never shrinks", func(t *testing.T) {
		got := Expand(r, schemas.HitSlop{Top: -50, Left: -50, Right: -50, Bottom: -50})
		assert.Equal(t, r, got)
	})

	t.Run("result contains the original", func(t *testing.T) {
		got := Expand(r, schemas.UniformHitSlop(25))
		for _, p := range []schemas.Point{
			{X: r.Left, Y: r.Top},
			{X: r.Right, Y: r.Bottom},
			r.Center(),
		} {
			assert.True(t, PointInRect(p, got), "expanded rect must contain %+v", p)
		}
	})
}

func TestPointInRect(t *testing.T) {
	r := schemas.Rect{Top: 0, Left: 0, Right: 10, Bottom: 10}

	cases := []struct {
		name string
		p    schemas.Point
		want bool
	}{
		{"center", schemas.Point{X: 5, Y: 5}, true},
		{"corner is inclusive", schemas.Point{X: 0, Y: 0}, true},
		{"edge is inclusive", schemas.Point{X: 10, Y: 5}, true},
		{"just outside right", schemas.Point{X: 10.001, Y: 5}, false},
		{"above", schemas.Point{X: 5, Y: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PointInRect(tc.p, r))
		})
	}
}

func TestSegmentIntersectsRect(t *testing.T) {
	r := schemas.Rect{Top: 10, Left: 10, Right: 20, Bottom: 20}

	cases := []struct {
		name   string
		p0, p1 schemas.Point
		want   bool
	}{
		{"crosses horizontally", schemas.Point{X: 0, Y: 15}, schemas.Point{X: 30, Y: 15}, true},
		{"crosses vertically", schemas.Point{X: 15, Y: 0}, schemas.Point{X: 15, Y: 30}, true},
		{"diagonal through corner region", schemas.Point{X: 0, Y: 0}, schemas.Point{X: 30, Y: 30}, true},
		{"stops short", schemas.Point{X: 0, Y: 15}, schemas.Point{X: 9, Y: 15}, false},
		{"passes beside", schemas.Point{X: 0, Y: 25}, schemas.Point{X: 30, Y: 25}, false},
		{"endpoint inside", schemas.Point{X: 15, Y: 15}, schemas.Point{X: 100, Y: 100}, true},
		{"both endpoints inside", schemas.Point{X: 12, Y: 12}, schemas.Point{X: 18, Y: 18}, true},
		{"touches edge only", schemas.Point{X: 0, Y: 10}, schemas.Point{X: 30, Y: 10}, true},
		{"touches corner only", schemas.Point{X: 0, Y: 20}, schemas.Point{X: 20, Y: 0}, true},
		{"degenerate inside", schemas.Point{X: 15, Y: 15}, schemas.Point{X: 15, Y: 15}, true},
		{"degenerate outside", schemas.Point{X: 5, Y: 5}, schemas.Point{X: 5, Y: 5}, false},
		{"skims past corner", schemas.Point{X: 0, Y: 41}, schemas.Point{X: 41, Y: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SegmentIntersectsRect(tc.p0, tc.p1, r))
			assert.Equal(t, tc.want, SegmentIntersectsRect(tc.p1, tc.p0, r),
				"intersection must not depend on segment direction")
		})
	}
}

func TestRectsEqual(t *testing.T) {
	a := schemas.Rect{Top: 1, Left: 2, Right: 3, Bottom: 4}
	assert.True(t, RectsEqual(a, a))
	assert.False(t, RectsEqual(a, schemas.Rect{Top: 1, Left: 2, Right: 3, Bottom: 5}))
}

// FuzzSegmentIntersectsRect checks the geometric invariants over arbitrary
// inputs: direction symmetry, endpoint containment, and expansion being a
// superset.
func FuzzSegmentIntersectsRect(f *testing.F) {
	f.Add(float64(0), float64(15), float64(30), float64(15), []byte{1})
	f.Add(float64(-5), float64(-5), float64(5), float64(5), []byte{2, 200, 9})
	f.Add(float64(15), float64(15), float64(15), float64(15), []byte{})

	f.Fuzz(func(t *testing.T, x0, y0, x1, y1 float64, data []byte) {
		fc := fuzz.NewConsumer(data)
		var r schemas.Rect
		if err := fc.GenerateStruct(&r); err != nil {
			return
		}
		// Normalize to a well-formed, finite rect.
		for _, v := range []float64{r.Top, r.Left, r.Right, r.Bottom, x0, y0, x1, y1} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return
			}
		}
		if r.Right < r.Left {
			r.Left, r.Right = r.Right, r.Left
		}
		if r.Bottom < r.Top {
			r.Top, r.Bottom = r.Bottom, r.Top
		}

		p0 := schemas.Point{X: x0, Y: y0}
		p1 := schemas.Point{X: x1, Y: y1}

		forward := SegmentIntersectsRect(p0, p1, r)
		backward := SegmentIntersectsRect(p1, p0, r)
		if forward != backward {
			t.Errorf("symmetry violated for %+v %+v rect %+v: %v vs %v", p0, p1, r, forward, backward)
		}

		if (PointInRect(p0, r) || PointInRect(p1, r)) && !forward {
			t.Errorf("segment with an endpoint inside %+v must intersect", r)
		}

		// A hit against the original rect must survive any expansion.
		expanded := Expand(r, schemas.UniformHitSlop(10))
		if forward && !SegmentIntersectsRect(p0, p1, expanded) {
			t.Errorf("expansion lost an intersection: rect %+v expanded %+v", r, expanded)
		}
	})
}
