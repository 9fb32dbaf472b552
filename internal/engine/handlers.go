package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/geom"
	"github.com/xkilldash9x/presage/internal/predict"
)

const tabKey = "Tab"

// pendingHit is a hit collected during a registry scan and fired after
// the scan completes, since firing mutates the registry.
type pendingHit struct {
	handle    schemas.ElementHandle
	ht        schemas.HitType
	predicted *schemas.Point
}

// PointerMove ingests one pointer sample: it rolls the position history,
// recomputes the predicted point, publishes the trajectory update, and
// fires callbacks for every visible element the current-to-predicted
// segment reaches.
func (e *Engine) PointerMove(ev schemas.PointerMoveEvent) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	t := ev.Time
	if t.IsZero() {
		t = e.now()
	}
	s := e.settings.snapshot()

	if e.havePointer {
		e.history = append(e.history, schemas.PositionSample{Point: e.current, Time: e.currentAt})
		if over := len(e.history) - s.PositionHistorySize; over > 0 {
			e.history = e.history[over:]
		}
	}
	e.current = ev.Point
	e.currentAt = t
	e.havePointer = true

	if s.EnableMousePrediction {
		e.predicted = predict.PredictPoint(e.current, e.history, s.TrajectoryPredictionTime)
	} else {
		e.predicted = e.current
	}

	var emit []func()
	e.publishLocked(&emit, schemas.EventMouseTrajectoryUpdate, schemas.MouseTrajectoryUpdateEvent{
		Current:           e.current,
		Predicted:         e.predicted,
		History:           append([]schemas.PositionSample(nil), e.history...),
		PredictionEnabled: s.EnableMousePrediction,
	}, t)

	var hits []pendingHit
	e.reg.each(func(rec *record) {
		if !rec.visible {
			return
		}
		rect := rec.bounds.ExpandedRect
		if !s.EnableMousePrediction {
			if geom.PointInRect(e.current, rect) {
				hits = append(hits, pendingHit{
					handle: rec.handle,
					ht:     schemas.HitType{Kind: schemas.HitMouse, Subtype: schemas.SubtypeHover},
				})
			}
			return
		}
		if !geom.SegmentIntersectsRect(e.current, e.predicted, rect) {
			return
		}
		if geom.PointInRect(e.current, rect) {
			hits = append(hits, pendingHit{
				handle: rec.handle,
				ht:     schemas.HitType{Kind: schemas.HitMouse, Subtype: schemas.SubtypeHover},
			})
			return
		}
		if rec.trajectoryHit != nil {
			return
		}
		pp := e.predicted
		hits = append(hits, pendingHit{
			handle:    rec.handle,
			ht:        schemas.HitType{Kind: schemas.HitMouse, Subtype: schemas.SubtypeTrajectory},
			predicted: &pp,
		})
	})
	for _, h := range hits {
		e.fireLocked(h.handle, h.ht, h.predicted, t, &emit)
	}
	e.mu.Unlock()
	runEmits(emit)
}

// KeyDown records a Tab press as a pending traversal intent. Any other
// key clears the intent, so only the focus change immediately following
// a Tab is treated as keyboard navigation.
func (e *Engine) KeyDown(ev schemas.KeyDownEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if !e.settings.snapshot().EnableTabPrediction || ev.Key != tabKey {
		e.pendingTab = nil
		return
	}
	dir := schemas.TraversalForwards
	if ev.Shift {
		dir = schemas.TraversalReverse
	}
	t := ev.Time
	if t.IsZero() {
		t = e.now()
	}
	e.pendingTab = &tabIntent{direction: dir, at: t}
}

// FocusIn consumes the pending tab intent and fires every registered
// element within the configured offset window ahead of the newly focused
// element, in traversal order. Tab fires do not require current
// visibility; focus can land on elements the observer has not reported
// yet.
func (e *Engine) FocusIn(ev schemas.FocusInEvent) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	intent := e.pendingTab
	e.pendingTab = nil
	s := e.settings.snapshot()
	provider := e.provider
	e.mu.Unlock()

	if intent == nil || !s.EnableTabPrediction || provider == nil {
		return
	}

	// Collaborator code runs unlocked.
	tabbables := provider.Tabbables()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	targets, ok := predict.SelectTabTargets(tabbables, ev.Handle, intent.direction, s.TabOffset)
	if !ok {
		e.mu.Unlock()
		e.logger.Debug("Focused element not in tabbable set; skipping tab prediction.",
			zap.String("handle", string(ev.Handle)))
		return
	}
	subtype := schemas.SubtypeForwards
	if intent.direction == schemas.TraversalReverse {
		subtype = schemas.SubtypeReverse
	}
	t := ev.Time
	if t.IsZero() {
		t = e.now()
	}
	var emit []func()
	for _, target := range targets {
		e.fireLocked(target, schemas.HitType{Kind: schemas.HitTab, Subtype: subtype}, nil, t, &emit)
	}
	e.mu.Unlock()
	runEmits(emit)
}

// ApplyViewportBatch ingests one observer batch: per-entry bounds and
// visibility updates, then at most one scroll inference for the whole
// batch. The scroll direction comes from the first entry whose rect
// moved, and the hit pass covers only elements present in the batch.
func (e *Engine) ApplyViewportBatch(batch schemas.ViewportBatch) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	t := batch.Time
	if t.IsZero() {
		t = e.now()
	}
	s := e.settings.snapshot()

	var emit []func()
	direction := schemas.ScrollNone
	haveDirection := false
	var touched []schemas.ElementHandle

	for _, entry := range batch.Entries {
		rec, ok := e.reg.get(entry.Handle)
		if !ok {
			continue
		}
		first := !rec.observed
		rec.observed = true
		var aspects []schemas.DataAspect
		if rec.visible != entry.Intersecting {
			rec.visible = entry.Intersecting
			aspects = append(aspects, schemas.AspectVisibility)
		}
		if !geom.RectsEqual(rec.bounds.OriginalRect, entry.Rect) {
			old := rec.bounds.OriginalRect
			rec.setBounds(entry.Rect)
			aspects = append(aspects, schemas.AspectBounds)
			// A first report has no previous rect; its delta is not
			// scroll movement.
			if !first && !haveDirection {
				direction = predict.InferScrollDirection(old, entry.Rect)
				haveDirection = true
			}
		}
		if len(aspects) > 0 {
			e.publishLocked(&emit, schemas.EventElementDataUpdated, schemas.ElementDataUpdatedEvent{
				Element: rec.summary(),
				Aspects: aspects,
			}, t)
		}
		touched = append(touched, entry.Handle)
	}

	if e.havePointer && direction != schemas.ScrollNone {
		e.scrollPassLocked(s, direction, touched, t, &emit)
	}
	e.mu.Unlock()
	runEmits(emit)
}

// scrollPassLocked publishes the scroll trajectory and fires callbacks
// for batch elements the projected path reaches. With scroll prediction
// disabled it degrades to a point-in-rect check at the current pointer
// position.
func (e *Engine) scrollPassLocked(s schemas.Settings, direction schemas.ScrollDirection, touched []schemas.ElementHandle, t time.Time, emit *[]func()) {
	sub := scrollSubtype(direction)

	if !s.EnableScrollPrediction {
		for _, h := range touched {
			rec, ok := e.reg.get(h)
			if !ok || !rec.visible {
				continue
			}
			if geom.PointInRect(e.current, rec.bounds.ExpandedRect) {
				e.fireLocked(h, schemas.HitType{Kind: schemas.HitScroll, Subtype: sub}, nil, t, emit)
			}
		}
		return
	}

	pp := predict.ProjectScrollPoint(e.current, direction, s.ScrollMargin)
	e.publishLocked(emit, schemas.EventScrollTrajectoryUpdate, schemas.ScrollTrajectoryUpdateEvent{
		Current:   e.current,
		Predicted: pp,
		Direction: direction,
	}, t)
	for _, h := range touched {
		rec, ok := e.reg.get(h)
		if !ok || !rec.visible {
			continue
		}
		if geom.SegmentIntersectsRect(e.current, pp, rec.bounds.ExpandedRect) {
			p := pp
			e.fireLocked(h, schemas.HitType{Kind: schemas.HitScroll, Subtype: sub}, &p, t, emit)
		}
	}
}

// HandleDisconnect removes an element reported gone from the document.
func (e *Engine) HandleDisconnect(ev schemas.DisconnectEvent) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var emit []func()
	e.removeLocked(ev.Handle, schemas.UnregisterDisconnected, &emit)
	e.mu.Unlock()
	runEmits(emit)
}

// NotifyMutation tells the tabbable provider its cached ordering is
// stale. The provider is fixed at construction, so no lock is needed.
func (e *Engine) NotifyMutation() {
	if p := e.provider; p != nil {
		p.Invalidate()
	}
}

func scrollSubtype(dir schemas.ScrollDirection) schemas.HitSubtype {
	switch dir {
	case schemas.ScrollUp:
		return schemas.SubtypeUp
	case schemas.ScrollDown:
		return schemas.SubtypeDown
	case schemas.ScrollLeft:
		return schemas.SubtypeLeft
	default:
		return schemas.SubtypeRight
	}
}
