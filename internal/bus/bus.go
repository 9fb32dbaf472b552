// Package bus is the typed publish/subscribe channel between the
// prediction engine and external observers. Delivery is synchronous and
// in-order; a panicking handler is isolated and logged so one faulty
// subscriber cannot break dispatch to the rest or corrupt the engine's
// state machine.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
)

// Handler consumes one published event. Handlers run on the publisher's
// goroutine and should return quickly.
type Handler func(schemas.Event)

// Subscription is the cancellation token returned by Subscribe. Cancelling
// is idempotent. A subscription cancelled while a dispatch is in flight
// may still receive that one event.
type Subscription struct {
	ID   string
	kind schemas.EventKind
	all  bool

	handler Handler
	bus     *Bus
	once    sync.Once
}

// Cancel removes the subscription from the bus.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Stats is a snapshot of bus activity.
type Stats struct {
	Delivered     int64
	Panicked      int64
	Subscriptions int
}

// Bus routes events to subscribers by kind.
type Bus struct {
	logger *zap.Logger

	mu    sync.RWMutex
	subs  map[schemas.EventKind][]*Subscription
	every []*Subscription

	delivered atomic.Int64
	panicked  atomic.Int64
}

// New returns an empty bus. A nil logger falls back to a no-op logger.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger.With(zap.String("component", "bus")),
		subs:   make(map[schemas.EventKind][]*Subscription),
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind schemas.EventKind, h Handler) *Subscription {
	sub := &Subscription{ID: uuid.NewString(), kind: kind, handler: h, bus: b}
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()
	return sub
}

// SubscribeAll registers a handler for every event kind. Used by sinks
// such as the trace writer that want the whole stream.
func (b *Bus) SubscribeAll(h Handler) *Subscription {
	sub := &Subscription{ID: uuid.NewString(), all: true, handler: h, bus: b}
	b.mu.Lock()
	b.every = append(b.every, sub)
	b.mu.Unlock()
	return sub
}

// Publish delivers the event to every matching subscriber, in
// subscription order, kind-specific handlers before catch-all ones. The
// handler list is snapshotted first so handlers may subscribe or cancel
// without deadlocking.
func (b *Bus) Publish(ev schemas.Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[ev.Kind])+len(b.every))
	targets = append(targets, b.subs[ev.Kind]...)
	targets = append(targets, b.every...)
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *Subscription, ev schemas.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panicked.Add(1)
			b.logger.Error("Subscriber panicked during event delivery.",
				zap.String("subscription_id", sub.ID),
				zap.String("event_kind", string(ev.Kind)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	sub.handler(ev)
	b.delivered.Add(1)
}

// Stats returns delivery counters and the live subscription count.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.every)
	for _, subs := range b.subs {
		n += len(subs)
	}
	b.mu.RUnlock()
	return Stats{
		Delivered:     b.delivered.Load(),
		Panicked:      b.panicked.Load(),
		Subscriptions: n,
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.all {
		b.every = drop(b.every, sub)
		return
	}
	if remaining := drop(b.subs[sub.kind], sub); len(remaining) > 0 {
		b.subs[sub.kind] = remaining
	} else {
		delete(b.subs, sub.kind)
	}
}

func drop(subs []*Subscription, target *Subscription) []*Subscription {
	for i, s := range subs {
		if s == target {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
