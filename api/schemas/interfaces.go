package schemas

import "context"

// -- Callback Types --

// Callback is the consumer-supplied action fired when an interaction with
// the element is predicted. The engine decides when to fire it, never what
// it does.
type Callback func()

// GlobalCallbackHook observes every callback fire across all elements.
type GlobalCallbackHook func(CallbackFiredEvent)

// -- Collaborator Interfaces --

// InputSink is the engine's input surface, as driven by a source: a live
// browser session or a trace replay.
type InputSink interface {
	PointerMove(PointerMoveEvent)
	KeyDown(KeyDownEvent)
	FocusIn(FocusInEvent)
	ApplyViewportBatch(ViewportBatch)
	HandleDisconnect(DisconnectEvent)
	// NotifyMutation reports a structural page mutation that invalidates
	// cached tab ordering.
	NotifyMutation()
}

// TabbableProvider supplies the ordered set of currently focusable
// elements. Implementations cache the set; Invalidate is called whenever a
// structural mutation is reported so the next Tabbables call recomputes.
type TabbableProvider interface {
	// Tabbables returns focusable element handles in document order.
	Tabbables() []ElementHandle
	// Invalidate discards the cached set.
	Invalidate()
}

// ListenerController attaches and detaches the global input listeners. The
// engine calls Attach when the first element is registered and Detach when
// the registry empties. The context passed to Attach is cancelled on
// detach, so all listeners share one teardown handle.
type ListenerController interface {
	Attach(ctx context.Context) error
	Detach()
}

// PolicyDecision is the outcome of a registration eligibility check.
type PolicyDecision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// DevicePolicy decides whether registrations are worthwhile on the current
// device. Touch-only pointers or data-saver connections make prediction
// pointless, so a source may decline every registration up front. A
// decline is not an error.
type DevicePolicy interface {
	Evaluate() PolicyDecision
}

// -- Registration Types --

// RegisterOptions configures one element registration.
type RegisterOptions struct {
	// Callback is required.
	Callback Callback
	// HitSlop overrides the manager default when non-nil.
	HitSlop *HitSlop
	// Name labels the element in events and logs. Defaults to the handle.
	Name string
	// Persistent keeps the record registered after its callback fires,
	// allowing repeat fires. The default is fire-once.
	Persistent bool
}

// RegisterResult reports the outcome of a registration.
type RegisterResult struct {
	// Registered is false when the device policy declined the
	// registration.
	Registered bool
	// Reason explains a declined registration.
	Reason string
	// Unregister removes this registration. Safe to call more than once
	// and after the record is already gone.
	Unregister func()
}
