package engine

import (
	"time"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/geom"
)

// record is one registered element. Records are owned by the registry and
// never escape it; events and snapshots carry copies via summary().
type record struct {
	handle     schemas.ElementHandle
	gen        uint64
	name       string
	callback   schemas.Callback
	slop       schemas.HitSlop
	slopIsOwn  bool
	persistent bool

	bounds schemas.ElementBounds
	// observed is set once the first viewport report arrives. Until then
	// the bounds are placeholders and rect deltas mean nothing.
	observed bool
	visible  bool
	hits     schemas.CallbackHits

	// trajectoryHit marks a recent trajectory fire on a persistent
	// record. While set, the trajectory path will not re-fire; the
	// attached timer clears it after the TTL and must be stopped on every
	// removal path.
	trajectoryHit *trajectoryHit
}

type trajectoryHit struct {
	point schemas.Point
	at    time.Time
	timer *time.Timer
}

// setBounds recomputes the element's bounds from a fresh original rect and
// the record's effective hit slop.
func (r *record) setBounds(original schemas.Rect) {
	r.bounds = schemas.ElementBounds{
		OriginalRect: original,
		ExpandedRect: geom.Expand(original, r.slop),
		HitSlop:      r.slop,
	}
}

// applySlop swaps the record's hit slop and re-expands the current rect.
func (r *record) applySlop(slop schemas.HitSlop) {
	r.slop = slop
	r.setBounds(r.bounds.OriginalRect)
}

// clearTrajectoryHit stops the mark's expiration timer, if any, and
// discards the mark.
func (r *record) clearTrajectoryHit() {
	if r.trajectoryHit == nil {
		return
	}
	if t := r.trajectoryHit.timer; t != nil {
		t.Stop()
	}
	r.trajectoryHit = nil
}

func (r *record) summary() schemas.ElementSummary {
	return schemas.ElementSummary{
		Handle:     r.handle,
		Name:       r.name,
		Bounds:     r.bounds,
		Visible:    r.visible,
		Persistent: r.persistent,
		Hits:       r.hits,
	}
}

// registry maps handles to records while preserving registration order,
// so hit passes and snapshots iterate deterministically. A handle appears
// at most once.
type registry struct {
	records map[schemas.ElementHandle]*record
	order   []schemas.ElementHandle
}

func newRegistry() registry {
	return registry{records: make(map[schemas.ElementHandle]*record)}
}

func (g *registry) get(h schemas.ElementHandle) (*record, bool) {
	rec, ok := g.records[h]
	return rec, ok
}

func (g *registry) add(rec *record) {
	if _, exists := g.records[rec.handle]; !exists {
		g.order = append(g.order, rec.handle)
	}
	g.records[rec.handle] = rec
}

func (g *registry) remove(h schemas.ElementHandle) (*record, bool) {
	rec, ok := g.records[h]
	if !ok {
		return nil, false
	}
	delete(g.records, h)
	for i, other := range g.order {
		if other == h {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return rec, true
}

func (g *registry) len() int { return len(g.records) }

// each visits records in registration order. The visitor must not mutate
// the registry; handlers that fire collect hits first and mutate after.
func (g *registry) each(fn func(*record)) {
	for _, h := range g.order {
		if rec, ok := g.records[h]; ok {
			fn(rec)
		}
	}
}
