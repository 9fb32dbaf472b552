// internal/engine/mocks_test.go
package engine

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/presage/api/schemas"
)

// -- Mock Implementations --

// mockListenerController counts attach/detach transitions. attachFunc can
// be customized per test to simulate attachment failures.
type mockListenerController struct {
	mu          sync.Mutex
	attachments int
	detachments int
	attachFunc  func(ctx context.Context) error
}

func (m *mockListenerController) Attach(ctx context.Context) error {
	m.mu.Lock()
	m.attachments++
	fn := m.attachFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *mockListenerController) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachments++
}

func (m *mockListenerController) counts() (attached, detached int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attachments, m.detachments
}

// mockTabbableProvider serves a fixed tab ordering.
type mockTabbableProvider struct {
	mu            sync.Mutex
	handles       []schemas.ElementHandle
	invalidations int
	tabbablesFunc func() []schemas.ElementHandle
}

func (m *mockTabbableProvider) Tabbables() []schemas.ElementHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tabbablesFunc != nil {
		return m.tabbablesFunc()
	}
	return append([]schemas.ElementHandle(nil), m.handles...)
}

func (m *mockTabbableProvider) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations++
}

// mockDevicePolicy allows; override evaluateFunc to decline.
type mockDevicePolicy struct {
	evaluateFunc func() schemas.PolicyDecision
}

func (m *mockDevicePolicy) Evaluate() schemas.PolicyDecision {
	if m.evaluateFunc != nil {
		return m.evaluateFunc()
	}
	return schemas.PolicyDecision{Allow: true}
}

// -- Test Helpers --

// eventRecorder captures all bus traffic. Publication is synchronous, so
// once an engine call returns the recorder is complete.
type eventRecorder struct {
	mu     sync.Mutex
	events []schemas.Event
}

func (r *eventRecorder) handle(ev schemas.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofKind(kind schemas.EventKind) []schemas.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schemas.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) kinds() []schemas.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schemas.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// newTestEngine builds an engine with default settings, a test logger,
// and a recorder subscribed to every event.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *eventRecorder) {
	t.Helper()
	e := New(schemas.DefaultSettings(), zaptest.NewLogger(t), opts...)
	t.Cleanup(e.Close)
	rec := &eventRecorder{}
	sub := e.Events().SubscribeAll(rec.handle)
	t.Cleanup(sub.Cancel)
	return e, rec
}

func ptr[T any](v T) *T { return &v }
