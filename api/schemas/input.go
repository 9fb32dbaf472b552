package schemas

import "time"

// Inbound input events, as delivered by a source (live browser or trace
// replay). Times are source times; the engine stamps its own clock when a
// source leaves them zero.

// PointerMoveEvent is one pointer position update.
type PointerMoveEvent struct {
	Point Point     `json:"point"`
	Time  time.Time `json:"time"`
}

// KeyDownEvent is a key press, used only to detect an imminent tab
// traversal before the focus change lands.
type KeyDownEvent struct {
	Key   string    `json:"key"`
	Shift bool      `json:"shift"`
	Time  time.Time `json:"time"`
}

// FocusInEvent reports the newly focused element.
type FocusInEvent struct {
	Handle ElementHandle `json:"handle"`
	Time   time.Time     `json:"time"`
}

// ViewportEntry is one element's observation within a batch: its fresh
// bounding rect and whether it intersects the viewport.
type ViewportEntry struct {
	Handle       ElementHandle `json:"handle"`
	Rect         Rect          `json:"rect"`
	Intersecting bool          `json:"intersecting"`
}

// ViewportBatch is one coalesced set of observations, delivered together
// (typically once per animation frame).
type ViewportBatch struct {
	Entries []ViewportEntry `json:"entries"`
	Time    time.Time       `json:"time"`
}

// ElementAddedEvent reports an element matching the tracked selectors
// appearing in the DOM. The session decides whether to register it.
type ElementAddedEvent struct {
	Handle ElementHandle `json:"handle"`
	Name   string        `json:"name"`
	Time   time.Time     `json:"time"`
}

// DisconnectEvent reports that an element left the DOM.
type DisconnectEvent struct {
	Handle ElementHandle `json:"handle"`
	Time   time.Time     `json:"time"`
}

// TabbablesEvent carries the recomputed ordered set of focusable elements.
type TabbablesEvent struct {
	Handles []ElementHandle `json:"handles"`
	Time    time.Time       `json:"time"`
}
