// internal/bus/bus_test.go
package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/presage/api/schemas"
)

func event(kind schemas.EventKind) schemas.Event {
	return schemas.Event{Kind: kind, Timestamp: time.Unix(1756000000, 0)}
}

func TestBus_SubscribeAndPublish(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(zaptest.NewLogger(t))

	var got []schemas.Event
	sub := b.Subscribe(schemas.EventCallbackFired, func(ev schemas.Event) {
		got = append(got, ev)
	})
	defer sub.Cancel()

	b.Publish(event(schemas.EventCallbackFired))
	b.Publish(event(schemas.EventElementRegistered)) // different kind, not delivered

	require.Len(t, got, 1)
	assert.Equal(t, schemas.EventCallbackFired, got[0].Kind)

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.Delivered)
	assert.Equal(t, 1, stats.Subscriptions)
}

func TestBus_KindSpecificBeforeCatchAll(t *testing.T) {
	b := New(zaptest.NewLogger(t))

	var order []string
	b.SubscribeAll(func(schemas.Event) { order = append(order, "all") })
	b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { order = append(order, "kind") })

	b.Publish(event(schemas.EventCallbackFired))
	assert.Equal(t, []string{"kind", "all"}, order,
		"kind-specific handlers run before catch-all handlers regardless of subscription order")
}

func TestBus_DeliveryOrderFollowsSubscriptionOrder(t *testing.T) {
	b := New(zaptest.NewLogger(t))

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { order = append(order, i) })
	}
	b.Publish(event(schemas.EventCallbackFired))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := New(zaptest.NewLogger(t))

	calls := 0
	sub := b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { calls++ })

	b.Publish(event(schemas.EventCallbackFired))
	sub.Cancel()
	sub.Cancel() // idempotent
	b.Publish(event(schemas.EventCallbackFired))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Stats().Subscriptions)
}

func TestBus_PanickingSubscriberIsIsolated(t *testing.T) {
	b := New(zaptest.NewLogger(t))

	survived := 0
	b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { panic("bad subscriber") })
	b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { survived++ })

	require.NotPanics(t, func() { b.Publish(event(schemas.EventCallbackFired)) })
	assert.Equal(t, 1, survived, "the panic must not stop dispatch to later subscribers")

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.Panicked)
	assert.Equal(t, int64(1), stats.Delivered, "a panicked delivery does not count as delivered")
}

func TestBus_HandlerMayMutateSubscriptions(t *testing.T) {
	b := New(zaptest.NewLogger(t))

	nested := 0
	var outer *Subscription
	outer = b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) {
		// Cancelling and subscribing from inside a handler must not
		// deadlock; the dispatch snapshot is already taken.
		outer.Cancel()
		b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { nested++ })
	})

	b.Publish(event(schemas.EventCallbackFired))
	b.Publish(event(schemas.EventCallbackFired))

	assert.Equal(t, 1, nested)
	assert.Equal(t, 1, b.Stats().Subscriptions)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(zaptest.NewLogger(t))

	var mu sync.Mutex
	seen := 0
	b.SubscribeAll(func(schemas.Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	const publishers, perPublisher = 8, 50
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				b.Publish(event(schemas.EventMouseTrajectoryUpdate))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, publishers*perPublisher, seen)
	assert.Equal(t, int64(publishers*perPublisher), b.Stats().Delivered)
}

func TestBus_NilLoggerFallsBack(t *testing.T) {
	b := New(nil)
	b.Subscribe(schemas.EventCallbackFired, func(schemas.Event) { panic("still isolated") })
	require.NotPanics(t, func() { b.Publish(event(schemas.EventCallbackFired)) })
}
