// internal/browser/source.go

// Package browser drives a headless Chrome tab as a live input source.
// A collector script injected into every document streams pointer, key,
// focus, and geometry messages back over a CDP binding; the source
// decodes them and feeds the engine's input surface. The source also
// answers tab-order queries and device capability checks from the same
// session.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/presage/api/schemas"
)

// Message types the collector script emits.
const (
	msgPointerMove  = "pointerMove"
	msgKeyDown      = "keyDown"
	msgFocusIn      = "focusIn"
	msgViewport     = "viewport"
	msgElementAdded = "elementAdded"
	msgDisconnect   = "disconnect"
	msgMutation     = "mutation"
	msgTabbables    = "tabbables"
	msgDevice       = "device"
)

// Policy reasons reported when registration is declined.
const (
	ReasonCoarsePointer = "coarsePointer"
	ReasonDataSaver     = "dataSaver"
)

const tabbablesQueryTimeout = 2 * time.Second

// messageBuffer absorbs bursts between the CDP event goroutine and the
// dispatch pump. Pointer traffic peaks around a few hundred per second.
const messageBuffer = 512

var ErrAlreadyAttached = errors.New("browser source already attached")

// pageMessage is the envelope for everything the collector emits. Fields
// are populated per message type.
type pageMessage struct {
	Type     string                  `json:"type"`
	TimeMs   float64                 `json:"t,omitempty"`
	Handle   schemas.ElementHandle   `json:"handle,omitempty"`
	Name     string                  `json:"name,omitempty"`
	Key      string                  `json:"key,omitempty"`
	Shift    bool                    `json:"shift,omitempty"`
	Point    *schemas.Point          `json:"point,omitempty"`
	Entries  []schemas.ViewportEntry `json:"entries,omitempty"`
	Handles  []schemas.ElementHandle `json:"handles,omitempty"`
	Coarse   bool                    `json:"coarse,omitempty"`
	SaveData bool                    `json:"saveData,omitempty"`
}

// Config selects the page to watch and how to run the browser.
type Config struct {
	// URL is the page to open.
	URL string
	// Selector chooses the elements to track. Empty means DefaultSelector.
	Selector string
	// Headless runs the browser without a window.
	Headless bool
	// UserAgent overrides the browser default when non-empty.
	UserAgent string
	// NavigationTimeout bounds collector install plus initial navigation.
	// Zero means no bound.
	NavigationTimeout time.Duration
}

// Hooks observe page happenings that fall outside the engine's input
// surface. Either field may be nil.
type Hooks struct {
	// ElementAdded fires for each element the collector discovers; the
	// watch session registers elements with the engine there.
	ElementAdded func(schemas.ElementAddedEvent)
	// Tabbables fires for each tab-order push from the page, so sessions
	// can persist the ordering into a trace.
	Tabbables func(schemas.TabbablesEvent)
}

// Source owns one browser session. It implements the listener controller,
// tabbable provider, and device policy surfaces against a live page.
type Source struct {
	logger *zap.Logger
	cfg    Config
	sink   schemas.InputSink
	hooks  Hooks

	mu            sync.Mutex
	attached      bool
	allocCancel   context.CancelFunc
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	group         *errgroup.Group
	msgs          chan string
	dropped       atomic.Int64

	tabMu     sync.Mutex
	tabbables []schemas.ElementHandle
	tabFresh  bool

	policyMu sync.Mutex
	probed   bool
	coarse   bool
	saveData bool

	// evalTabbables is swapped out by tests that have no browser.
	evalTabbables func(ctx context.Context) ([]schemas.ElementHandle, error)
}

// NewSource wires a source to the sink that will receive its input
// stream.
func NewSource(cfg Config, sink schemas.InputSink, hooks Hooks, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Selector == "" {
		cfg.Selector = DefaultSelector
	}
	s := &Source{
		logger: logger.With(zap.String("component", "browser")),
		cfg:    cfg,
		sink:   sink,
		hooks:  hooks,
	}
	s.evalTabbables = s.queryTabbables
	return s
}

// Attach launches the browser, injects the collector, navigates to the
// configured URL, and starts pumping messages into the sink. It returns
// once the page is loading; message flow continues until Detach or ctx
// cancellation.
func (s *Source) Attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return ErrAlreadyAttached
	}
	if s.cfg.URL == "" {
		return errors.New("browser source needs a URL")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	s.msgs = make(chan string, messageBuffer)
	chromedp.ListenTarget(taskCtx, s.onTargetEvent)

	g, gctx := errgroup.WithContext(taskCtx)
	g.Go(func() error {
		s.pump(gctx)
		return nil
	})

	// A derived deadline stops a stuck navigation without tearing down
	// the session context itself.
	runCtx := taskCtx
	if s.cfg.NavigationTimeout > 0 {
		var runCancel context.CancelFunc
		runCtx, runCancel = context.WithTimeout(taskCtx, s.cfg.NavigationTimeout)
		defer runCancel()
	}

	script := collectorScript(s.cfg.Selector)
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(c context.Context) error {
			if err := runtime.AddBinding(bindingName).Do(c); err != nil {
				return fmt.Errorf("add binding: %w", err)
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(c); err != nil {
				return fmt.Errorf("inject collector: %w", err)
			}
			return nil
		}),
		chromedp.Navigate(s.cfg.URL),
	)
	if err != nil {
		taskCancel()
		allocCancel()
		g.Wait()
		return fmt.Errorf("attach browser source: %w", err)
	}

	s.attached = true
	s.allocCancel = allocCancel
	s.sessionCtx = taskCtx
	s.sessionCancel = taskCancel
	s.group = g
	s.logger.Info("Browser source attached.", zap.String("url", s.cfg.URL))
	return nil
}

// Detach tears the session down and waits for the pump to drain.
func (s *Source) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return
	}
	s.sessionCancel()
	s.allocCancel()
	s.group.Wait()
	s.attached = false
	if n := s.dropped.Load(); n > 0 {
		s.logger.Warn("Messages were dropped during the session.", zap.Int64("dropped", n))
	}
	s.logger.Info("Browser source detached.")
}

// onTargetEvent runs on chromedp's event goroutine; it must not block.
func (s *Source) onTargetEvent(ev interface{}) {
	binding, ok := ev.(*runtime.EventBindingCalled)
	if !ok || binding.Name != bindingName {
		return
	}
	select {
	case s.msgs <- binding.Payload:
	default:
		s.dropped.Add(1)
	}
}

func (s *Source) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.msgs:
			s.handlePayload(payload)
		}
	}
}

func (s *Source) handlePayload(payload string) {
	var msg pageMessage
	if err := json.UnmarshalFromString(payload, &msg); err != nil {
		s.logger.Warn("Discarding undecodable page message.", zap.Error(err))
		return
	}
	s.dispatch(msg)
}

func (s *Source) dispatch(msg pageMessage) {
	at := time.Now()
	if msg.TimeMs > 0 {
		at = time.UnixMilli(int64(msg.TimeMs))
	}

	switch msg.Type {
	case msgPointerMove:
		if msg.Point == nil {
			return
		}
		s.sink.PointerMove(schemas.PointerMoveEvent{Point: *msg.Point, Time: at})
	case msgKeyDown:
		s.sink.KeyDown(schemas.KeyDownEvent{Key: msg.Key, Shift: msg.Shift, Time: at})
	case msgFocusIn:
		s.sink.FocusIn(schemas.FocusInEvent{Handle: msg.Handle, Time: at})
	case msgViewport:
		s.sink.ApplyViewportBatch(schemas.ViewportBatch{Entries: msg.Entries, Time: at})
	case msgElementAdded:
		if s.hooks.ElementAdded != nil {
			s.hooks.ElementAdded(schemas.ElementAddedEvent{Handle: msg.Handle, Name: msg.Name, Time: at})
		}
	case msgDisconnect:
		s.sink.HandleDisconnect(schemas.DisconnectEvent{Handle: msg.Handle, Time: at})
	case msgMutation:
		s.sink.NotifyMutation()
	case msgTabbables:
		s.setTabbables(msg.Handles)
		if s.hooks.Tabbables != nil {
			s.hooks.Tabbables(schemas.TabbablesEvent{Handles: msg.Handles, Time: at})
		}
	case msgDevice:
		s.policyMu.Lock()
		s.probed = true
		s.coarse = msg.Coarse
		s.saveData = msg.SaveData
		s.policyMu.Unlock()
	default:
		s.logger.Debug("Ignoring page message of unknown type.", zap.String("type", msg.Type))
	}
}

// Tabbables returns the page's tab ordering. A fresh push from the
// collector is served from cache; after an invalidation the page is
// queried directly, falling back to the stale ordering on failure.
func (s *Source) Tabbables() []schemas.ElementHandle {
	s.tabMu.Lock()
	if s.tabFresh {
		out := append([]schemas.ElementHandle(nil), s.tabbables...)
		s.tabMu.Unlock()
		return out
	}
	stale := append([]schemas.ElementHandle(nil), s.tabbables...)
	s.tabMu.Unlock()

	s.mu.Lock()
	ctx := s.sessionCtx
	attached := s.attached
	s.mu.Unlock()
	if !attached {
		return stale
	}

	handles, err := s.evalTabbables(ctx)
	if err != nil {
		s.logger.Warn("Tab order query failed; serving the last known ordering.", zap.Error(err))
		return stale
	}
	s.setTabbables(handles)
	return append([]schemas.ElementHandle(nil), handles...)
}

// Invalidate marks the cached tab ordering stale.
func (s *Source) Invalidate() {
	s.tabMu.Lock()
	s.tabFresh = false
	s.tabMu.Unlock()
}

func (s *Source) setTabbables(handles []schemas.ElementHandle) {
	s.tabMu.Lock()
	s.tabbables = append([]schemas.ElementHandle(nil), handles...)
	s.tabFresh = true
	s.tabMu.Unlock()
}

func (s *Source) queryTabbables(ctx context.Context) ([]schemas.ElementHandle, error) {
	opCtx, cancel := context.WithTimeout(ctx, tabbablesQueryTimeout)
	defer cancel()

	var handles []schemas.ElementHandle
	err := chromedp.Run(opCtx,
		chromedp.Evaluate(tabbablesExpr, &handles, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// Evaluate reports whether prediction is worth running on this device.
// Before the first device probe arrives it allows optimistically.
func (s *Source) Evaluate() schemas.PolicyDecision {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	if !s.probed {
		return schemas.PolicyDecision{Allow: true}
	}
	if s.coarse {
		return schemas.PolicyDecision{Allow: false, Reason: ReasonCoarsePointer}
	}
	if s.saveData {
		return schemas.PolicyDecision{Allow: false, Reason: ReasonDataSaver}
	}
	return schemas.PolicyDecision{Allow: true}
}
