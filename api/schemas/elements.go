package schemas

// ElementHandle is an opaque, comparable identifier for a tracked element.
// Live sources derive it from the page (a stable per-node ID); replay
// sources read it straight from the trace.
type ElementHandle string

// HitKind is the top-level interaction class that triggered a callback.
type HitKind string

const (
	HitMouse  HitKind = "mouse"
	HitTab    HitKind = "tab"
	HitScroll HitKind = "scroll"
)

// HitSubtype narrows a HitKind to the concrete trigger.
type HitSubtype string

const (
	SubtypeHover      HitSubtype = "hover"
	SubtypeTrajectory HitSubtype = "trajectory"
	SubtypeForwards   HitSubtype = "forwards"
	SubtypeReverse    HitSubtype = "reverse"
	SubtypeUp         HitSubtype = "up"
	SubtypeDown       HitSubtype = "down"
	SubtypeLeft       HitSubtype = "left"
	SubtypeRight      HitSubtype = "right"
)

// HitType pairs an interaction kind with its subtype.
type HitType struct {
	Kind    HitKind    `json:"kind"`
	Subtype HitSubtype `json:"subtype"`
}

// MouseHits counts mouse-driven callback invocations.
type MouseHits struct {
	Hover      int64 `json:"hover"`
	Trajectory int64 `json:"trajectory"`
}

// TabHits counts tab-traversal callback invocations.
type TabHits struct {
	Forwards int64 `json:"forwards"`
	Reverse  int64 `json:"reverse"`
}

// ScrollHits counts scroll-driven callback invocations by direction.
type ScrollHits struct {
	Up    int64 `json:"up"`
	Down  int64 `json:"down"`
	Left  int64 `json:"left"`
	Right int64 `json:"right"`
}

// CallbackHits is the nested counter set kept per element and aggregated
// globally. Counters are monotonically non-decreasing for the life of the
// process.
type CallbackHits struct {
	Mouse  MouseHits  `json:"mouse"`
	Tab    TabHits    `json:"tab"`
	Scroll ScrollHits `json:"scroll"`
	Total  int64      `json:"total"`
}

// Add records one invocation of the given hit type. Unknown combinations
// still count toward Total so the aggregate never undercounts.
func (c *CallbackHits) Add(ht HitType) {
	switch ht.Kind {
	case HitMouse:
		switch ht.Subtype {
		case SubtypeHover:
			c.Mouse.Hover++
		case SubtypeTrajectory:
			c.Mouse.Trajectory++
		}
	case HitTab:
		switch ht.Subtype {
		case SubtypeForwards:
			c.Tab.Forwards++
		case SubtypeReverse:
			c.Tab.Reverse++
		}
	case HitScroll:
		switch ht.Subtype {
		case SubtypeUp:
			c.Scroll.Up++
		case SubtypeDown:
			c.Scroll.Down++
		case SubtypeLeft:
			c.Scroll.Left++
		case SubtypeRight:
			c.Scroll.Right++
		}
	}
	c.Total++
}

// UnregisterReason explains why an element left the registry.
type UnregisterReason string

const (
	UnregisterExplicit      UnregisterReason = "explicit"
	UnregisterDisconnected  UnregisterReason = "disconnected"
	UnregisterCallbackFired UnregisterReason = "callbackFired"
)

// DataAspect tags which part of an element's tracked data changed.
type DataAspect string

const (
	AspectBounds     DataAspect = "bounds"
	AspectVisibility DataAspect = "visibility"
)

// ScrollDirection is the dominant axis/direction of a scroll batch.
type ScrollDirection string

const (
	ScrollNone  ScrollDirection = "none"
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// TraversalDirection is the direction of sequential keyboard navigation.
type TraversalDirection string

const (
	TraversalForwards TraversalDirection = "forwards"
	TraversalReverse  TraversalDirection = "reverse"
)

// ElementSummary is a read-only copy of one registry record, as exposed by
// snapshots and events. Mutating it has no effect on the engine.
type ElementSummary struct {
	Handle  ElementHandle `json:"handle"`
	Name    string        `json:"name"`
	Bounds  ElementBounds `json:"bounds"`
	Visible bool          `json:"visible"`
	// Persistent registrations survive a callback fire instead of being
	// removed from the registry.
	Persistent bool         `json:"persistent"`
	Hits       CallbackHits `json:"hits"`
}
