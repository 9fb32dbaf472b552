// Package engine implements the prediction engine: the element registry,
// the validated settings store, and the orchestrator that turns pointer,
// keyboard, focus, and viewport streams into at-most-once callback fires.
//
// The engine is event driven and run-to-completion. Every public method
// serializes on one mutex, mutates state, and only invokes outside code
// (callbacks, hooks, bus subscribers) after the lock is released, in the
// order the effects were produced. Outside code is therefore free to call
// back into the engine without deadlocking.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/bus"
)

// trajectoryHitTTL is how long a trajectory-hit mark suppresses repeat
// trajectory fires on a persistent record.
const trajectoryHitTTL = 200 * time.Millisecond

var (
	// ErrNoCallback is returned when a registration carries no callback.
	ErrNoCallback = errors.New("engine: registration requires a callback")
	// ErrEmptyHandle is returned for a registration without a handle.
	ErrEmptyHandle = errors.New("engine: registration requires an element handle")
	// ErrClosed is returned for registrations against a closed engine.
	ErrClosed = errors.New("engine: closed")
)

// tabIntent records a Tab keydown waiting for its focus change.
type tabIntent struct {
	direction schemas.TraversalDirection
	at        time.Time
}

// Engine coordinates prediction and dispatch for all registered elements.
type Engine struct {
	mu sync.Mutex

	logger *zap.Logger
	events *bus.Bus

	settings settingsStore
	reg      registry
	nextGen  uint64

	// Pointer trajectory state. history excludes the current point and
	// never exceeds the configured history size.
	history     []schemas.PositionSample
	current     schemas.Point
	currentAt   time.Time
	predicted   schemas.Point
	havePointer bool

	pendingTab *tabIntent

	provider  schemas.TabbableProvider
	listeners schemas.ListenerController
	policy    schemas.DevicePolicy
	hook      schemas.GlobalCallbackHook

	globalHits schemas.CallbackHits

	listenersArmed bool
	listenerCancel context.CancelFunc

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
	hitTTL    time.Duration

	closed bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithBus routes events through an existing bus instead of a fresh one.
func WithBus(b *bus.Bus) Option {
	return func(e *Engine) { e.events = b }
}

// WithListenerController installs the collaborator that attaches and
// detaches global input listeners on registry occupancy transitions.
func WithListenerController(lc schemas.ListenerController) Option {
	return func(e *Engine) { e.listeners = lc }
}

// WithTabbableProvider installs the source of the ordered tabbable set.
func WithTabbableProvider(tp schemas.TabbableProvider) Option {
	return func(e *Engine) { e.provider = tp }
}

// WithDevicePolicy installs the registration eligibility check.
func WithDevicePolicy(p schemas.DevicePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithGlobalCallbackHook installs the hook invoked after every fire.
func WithGlobalCallbackHook(h schemas.GlobalCallbackHook) Option {
	return func(e *Engine) { e.hook = h }
}

// WithClock overrides the engine clock. Test use.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine with the given initial settings. Out-of-range
// values are clamped, never rejected. A nil logger falls back to a no-op
// logger.
func New(initial schemas.Settings, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:    logger.With(zap.String("component", "engine")),
		settings:  newSettingsStore(initial),
		reg:       newRegistry(),
		now:       time.Now,
		afterFunc: time.AfterFunc,
		hitTTL:    trajectoryHitTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = bus.New(logger)
	}
	return e
}

// Events exposes the bus for subscribers.
func (e *Engine) Events() *bus.Bus { return e.events }

// Settings returns a copy of the current settings.
func (e *Engine) Settings() schemas.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.snapshot()
}

// Register adds an element to the registry. Re-registering a handle
// replaces the previous registration. When the device policy declines,
// the result reports Registered=false and no record is created; that is
// not an error.
func (e *Engine) Register(handle schemas.ElementHandle, opts schemas.RegisterOptions) (schemas.RegisterResult, error) {
	if handle == "" {
		return schemas.RegisterResult{}, ErrEmptyHandle
	}
	if opts.Callback == nil {
		return schemas.RegisterResult{}, ErrNoCallback
	}

	// The policy is collaborator code; consult it before taking the lock.
	if e.policy != nil {
		if d := e.policy.Evaluate(); !d.Allow {
			e.logger.Debug("Registration declined by device policy.",
				zap.String("handle", string(handle)),
				zap.String("reason", d.Reason),
			)
			return schemas.RegisterResult{Registered: false, Reason: d.Reason, Unregister: func() {}}, nil
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return schemas.RegisterResult{}, ErrClosed
	}

	var emit []func()
	if _, exists := e.reg.get(handle); exists {
		e.removeLocked(handle, schemas.UnregisterExplicit, &emit)
	}

	name := opts.Name
	if name == "" {
		name = string(handle)
	}
	slop := e.settings.snapshot().DefaultHitSlop
	if opts.HitSlop != nil {
		slop = clampHitSlop(*opts.HitSlop)
	}

	e.nextGen++
	rec := &record{
		handle:     handle,
		gen:        e.nextGen,
		name:       name,
		callback:   opts.Callback,
		slop:       slop,
		slopIsOwn:  opts.HitSlop != nil,
		persistent: opts.Persistent,
	}
	rec.setBounds(schemas.Rect{})
	e.reg.add(rec)

	if e.reg.len() == 1 {
		e.armListenersLocked(&emit)
	}
	e.publishLocked(&emit, schemas.EventElementRegistered, schemas.ElementRegisteredEvent{
		Element:   rec.summary(),
		Occupancy: e.reg.len(),
	}, e.now())
	gen := rec.gen
	e.mu.Unlock()
	runEmits(emit)

	e.logger.Debug("Element registered.", zap.String("handle", string(handle)), zap.String("name", name))
	return schemas.RegisterResult{
		Registered: true,
		Unregister: func() { e.unregisterGen(handle, gen) },
	}, nil
}

// Unregister removes the element explicitly. Unknown handles are a no-op.
func (e *Engine) Unregister(handle schemas.ElementHandle) {
	e.mu.Lock()
	var emit []func()
	e.removeLocked(handle, schemas.UnregisterExplicit, &emit)
	e.mu.Unlock()
	runEmits(emit)
}

// unregisterGen removes the element only while the registration that
// produced the closure is still the live one, so a stale Unregister
// cannot tear down a replacement registration.
func (e *Engine) unregisterGen(handle schemas.ElementHandle, gen uint64) {
	e.mu.Lock()
	rec, ok := e.reg.get(handle)
	if !ok || rec.gen != gen {
		e.mu.Unlock()
		return
	}
	var emit []func()
	e.removeLocked(handle, schemas.UnregisterExplicit, &emit)
	e.mu.Unlock()
	runEmits(emit)
}

// UpdateSettings applies a partial, clamped settings mutation. Updates
// that change nothing produce no events and no recomputation.
func (e *Engine) UpdateSettings(u schemas.SettingsUpdate) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	res := e.settings.apply(u)
	if !res.changed {
		e.mu.Unlock()
		return
	}
	s := e.settings.snapshot()
	var emit []func()

	if res.historyShrunk {
		if over := len(e.history) - s.PositionHistorySize; over > 0 {
			e.history = e.history[over:]
		}
	}
	if res.defaultSlopChanged {
		e.reg.each(func(rec *record) {
			if rec.slopIsOwn {
				return
			}
			rec.slop = s.DefaultHitSlop
			if rec.visible {
				rec.applySlop(s.DefaultHitSlop)
				e.publishLocked(&emit, schemas.EventElementDataUpdated, schemas.ElementDataUpdatedEvent{
					Element: rec.summary(),
					Aspects: []schemas.DataAspect{schemas.AspectBounds},
				}, e.now())
			}
		})
	}

	e.publishLocked(&emit, schemas.EventManagerSettingsChanged, schemas.ManagerSettingsChangedEvent{Settings: s}, e.now())
	e.mu.Unlock()
	runEmits(emit)
}

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot() schemas.ManagerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := schemas.ManagerSnapshot{
		Settings:       e.settings.snapshot(),
		GlobalHits:     e.globalHits,
		ListenersArmed: e.listenersArmed,
		Trajectory: schemas.TrajectorySnapshot{
			Current:   e.current,
			Predicted: e.predicted,
			History:   append([]schemas.PositionSample(nil), e.history...),
		},
	}
	snap.Elements = make([]schemas.ElementSummary, 0, e.reg.len())
	e.reg.each(func(rec *record) {
		snap.Elements = append(snap.Elements, rec.summary())
	})
	return snap
}

// Close tears the engine down: pending expiration timers are stopped,
// listeners are detached, and subsequent registrations fail with
// ErrClosed. Input events arriving after Close are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.reg.each(func(rec *record) {
		rec.clearTrajectoryHit()
	})
	e.reg = newRegistry()
	var emit []func()
	if e.listenersArmed {
		e.disarmListenersLocked(&emit)
	}
	e.mu.Unlock()
	runEmits(emit)
}

// -- Internal helpers. Methods with the Locked suffix require e.mu held. --

// removeLocked is the single removal path: it cancels the record's
// expiration timer, deletes it, publishes the unregistration, and tears
// down listeners when the registry empties.
func (e *Engine) removeLocked(handle schemas.ElementHandle, reason schemas.UnregisterReason, emit *[]func()) {
	rec, ok := e.reg.remove(handle)
	if !ok {
		return
	}
	rec.clearTrajectoryHit()
	e.publishLocked(emit, schemas.EventElementUnregistered, schemas.ElementUnregisteredEvent{
		Element:   rec.summary(),
		Reason:    reason,
		Occupancy: e.reg.len(),
	}, e.now())
	if e.reg.len() == 0 && e.listenersArmed {
		e.disarmListenersLocked(emit)
	}
}

// fireLocked performs one callback fire: counters, callback, hook, event,
// then the post-fire lifecycle (removal, or a trajectory-hit mark on a
// persistent record).
func (e *Engine) fireLocked(handle schemas.ElementHandle, ht schemas.HitType, predicted *schemas.Point, t time.Time, emit *[]func()) {
	rec, ok := e.reg.get(handle)
	if !ok {
		return
	}
	rec.hits.Add(ht)
	e.globalHits.Add(ht)

	fired := schemas.CallbackFiredEvent{
		Element:        rec.summary(),
		Hit:            ht,
		PredictedPoint: predicted,
		GlobalHits:     e.globalHits,
	}

	name := rec.name
	cb := rec.callback
	*emit = append(*emit, func() { e.invokeCallback(name, cb) })
	if hook := e.hook; hook != nil {
		*emit = append(*emit, func() { e.invokeHook(name, hook, fired) })
	}
	e.publishLocked(emit, schemas.EventCallbackFired, fired, t)

	e.logger.Info("Callback fired.",
		zap.String("element", name),
		zap.String("kind", string(ht.Kind)),
		zap.String("subtype", string(ht.Subtype)),
	)

	if !rec.persistent {
		e.removeLocked(handle, schemas.UnregisterCallbackFired, emit)
		return
	}
	if ht.Subtype == schemas.SubtypeTrajectory && predicted != nil {
		e.armTrajectoryHitLocked(rec, *predicted, t)
	}
}

func (e *Engine) armTrajectoryHitLocked(rec *record, point schemas.Point, t time.Time) {
	rec.clearTrajectoryHit()
	th := &trajectoryHit{point: point, at: t}
	handle := rec.handle
	th.timer = e.afterFunc(e.hitTTL, func() { e.expireTrajectoryHit(handle, th) })
	rec.trajectoryHit = th
}

// expireTrajectoryHit runs on the timer goroutine. The identity check
// keeps a stale timer from clearing a newer mark on a replacement record.
func (e *Engine) expireTrajectoryHit(handle schemas.ElementHandle, th *trajectoryHit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec, ok := e.reg.get(handle); ok && rec.trajectoryHit == th {
		rec.trajectoryHit = nil
	}
}

func (e *Engine) armListenersLocked(emit *[]func()) {
	e.listenersArmed = true
	if e.listeners == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.listenerCancel = cancel
	lc := e.listeners
	*emit = append(*emit, func() {
		if err := lc.Attach(ctx); err != nil {
			e.logger.Error("Failed to attach input listeners.", zap.Error(err))
		}
	})
	e.logger.Debug("Input listeners armed.")
}

func (e *Engine) disarmListenersLocked(emit *[]func()) {
	e.listenersArmed = false
	if cancel := e.listenerCancel; cancel != nil {
		e.listenerCancel = nil
		*emit = append(*emit, cancel)
	}
	if lc := e.listeners; lc != nil {
		*emit = append(*emit, lc.Detach)
	}
	e.logger.Debug("Input listeners disarmed.")
}

func (e *Engine) publishLocked(emit *[]func(), kind schemas.EventKind, payload any, t time.Time) {
	ev := schemas.Event{Kind: kind, Timestamp: t, Payload: payload}
	b := e.events
	*emit = append(*emit, func() { b.Publish(ev) })
}

// invokeCallback isolates consumer callbacks: a panic is logged, never
// propagated into the input path.
func (e *Engine) invokeCallback(name string, cb schemas.Callback) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Registered callback panicked.",
				zap.String("element", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	cb()
}

func (e *Engine) invokeHook(name string, hook schemas.GlobalCallbackHook, fired schemas.CallbackFiredEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Global callback hook panicked.",
				zap.String("element", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	hook(fired)
}

func runEmits(fns []func()) {
	for _, f := range fns {
		f()
	}
}
