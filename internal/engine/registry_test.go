// internal/engine/registry_test.go
package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/presage/api/schemas"
)

func visitOrder(g *registry) []schemas.ElementHandle {
	var out []schemas.ElementHandle
	g.each(func(rec *record) { out = append(out, rec.handle) })
	return out
}

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	g := newRegistry()
	for _, h := range []schemas.ElementHandle{"a", "b", "c"} {
		g.add(&record{handle: h})
	}
	assert.Equal(t, []schemas.ElementHandle{"a", "b", "c"}, visitOrder(&g))

	_, ok := g.remove("b")
	require.True(t, ok)
	assert.Equal(t, []schemas.ElementHandle{"a", "c"}, visitOrder(&g))
	assert.Equal(t, 2, g.len())

	// Re-adding after removal appends at the end.
	g.add(&record{handle: "b"})
	assert.Equal(t, []schemas.ElementHandle{"a", "c", "b"}, visitOrder(&g))

	_, ok = g.remove("missing")
	assert.False(t, ok)
}

func TestRegistry_AddSameHandleKeepsOneSlot(t *testing.T) {
	g := newRegistry()
	g.add(&record{handle: "a", name: "first"})
	g.add(&record{handle: "a", name: "second"})

	assert.Equal(t, 1, g.len())
	rec, ok := g.get("a")
	require.True(t, ok)
	assert.Equal(t, "second", rec.name)
	assert.Equal(t, []schemas.ElementHandle{"a"}, visitOrder(&g))
}

func TestRecord_BoundsExpansion(t *testing.T) {
	rec := &record{handle: "a", slop: schemas.UniformHitSlop(10)}
	rec.setBounds(schemas.Rect{Top: 100, Left: 50, Right: 150, Bottom: 140})

	assert.Equal(t, schemas.Rect{Top: 90, Left: 40, Right: 160, Bottom: 150}, rec.bounds.ExpandedRect)
	assert.Equal(t, schemas.Rect{Top: 100, Left: 50, Right: 150, Bottom: 140}, rec.bounds.OriginalRect)

	// Swapping the slop re-expands the same original rect.
	rec.applySlop(schemas.HitSlop{})
	assert.Equal(t, rec.bounds.OriginalRect, rec.bounds.ExpandedRect)
}

func TestRecord_ClearTrajectoryHit(t *testing.T) {
	rec := &record{handle: "a"}
	rec.clearTrajectoryHit() // no mark is fine

	fired := make(chan struct{})
	rec.trajectoryHit = &trajectoryHit{
		point: schemas.Point{X: 1, Y: 2},
		timer: time.AfterFunc(10*time.Millisecond, func() { close(fired) }),
	}
	rec.clearTrajectoryHit()
	assert.Nil(t, rec.trajectoryHit)

	select {
	case <-fired:
		t.Fatal("a cleared mark must not let its timer fire")
	case <-time.After(50 * time.Millisecond):
	}
}
