// File: cmd/watch.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/browser"
	"github.com/xkilldash9x/presage/internal/config"
	"github.com/xkilldash9x/presage/internal/engine"
	"github.com/xkilldash9x/presage/internal/observability"
	"github.com/xkilldash9x/presage/internal/trace"
)

// snapshotInterval paces the periodic session summary log in watch mode.
const snapshotInterval = 30 * time.Second

// newWatchCmd creates and configures the `watch` command.
func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "Attach to a page and stream interaction predictions",
		Long: `Watch launches a browser, injects the collector into the given page, and
runs the prediction engine against the live input stream. Every predicted
interaction is logged as it fires. With --trace the whole session is
written as JSON Lines for later replay.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override the config file
			// and environment with the right precedence.
			if err := viper.BindPFlag("watch.url", cmd.Flags().Lookup("url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("watch.trace_path", cmd.Flags().Lookup("trace")); err != nil {
				return err
			}
			if err := viper.BindPFlag("watch.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("watch.selectors", cmd.Flags().Lookup("selector")); err != nil {
				return err
			}
			return viper.BindPFlag("watch.navigation_timeout", cmd.Flags().Lookup("timeout"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if len(args) > 0 {
				cfg.Watch.URL = args[0]
			}
			return runWatch(cmd.Context(), cfg, observability.GetLogger())
		},
	}

	watchCmd.Flags().String("url", "", "page to watch (the positional argument wins when both are given)")
	watchCmd.Flags().String("trace", "", "write a JSONL trace of the session to this file")
	watchCmd.Flags().Bool("headless", true, "run the browser without a window")
	watchCmd.Flags().StringSlice("selector", nil, "CSS selectors for the elements to track (repeatable)")
	watchCmd.Flags().Duration("timeout", 45*time.Second, "navigation timeout for the initial page load")
	return watchCmd
}

// runWatch wires the engine, browser source, and optional trace writer
// together and runs until the context is cancelled.
func runWatch(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	url := normalizeURL(cfg.Watch.URL)
	if url == "" {
		return fmt.Errorf("no URL to watch; pass one as an argument or set watch.url")
	}

	session := &watchSession{logger: logger}
	defer session.close()

	sink, err := session.buildSink(cfg, logger)
	if err != nil {
		return err
	}

	selector := strings.Join(cfg.Watch.Selectors, ", ")
	session.source = browser.NewSource(browser.Config{
		URL:               url,
		Selector:          selector,
		Headless:          cfg.Watch.Headless,
		UserAgent:         cfg.Watch.UserAgent,
		NavigationTimeout: cfg.Watch.NavigationTimeout,
	}, sink, browser.Hooks{
		ElementAdded: session.onElementAdded,
		Tabbables:    session.onTabbables,
	}, logger)

	session.engine = engine.New(cfg.Engine.Settings(), logger,
		engine.WithTabbableProvider(session.source),
		engine.WithDevicePolicy(session.source),
		engine.WithGlobalCallbackHook(session.onCallbackFired),
	)
	if session.writer != nil {
		session.writer.AttachBus(session.engine.Events())
	}
	session.bind(session.engine)

	// The session drives the source lifecycle itself: discovery is what
	// produces registrations, so it cannot wait for them.
	if err := session.source.Attach(ctx); err != nil {
		return err
	}

	logger.Info("Watching page.", zap.String("url", url))

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			session.logSummary()
			return nil
		case <-ticker.C:
			snap := session.engine.Snapshot()
			logger.Debug("Session snapshot.",
				zap.Int("elements", len(snap.Elements)),
				zap.Int64("callback_fires", snap.GlobalHits.Total),
			)
		}
	}
}

// normalizeURL defaults bare hosts to https.
func normalizeURL(url string) string {
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "https://" + url
	}
	return url
}

// watchSession owns the moving parts of one watch run. It also bridges
// the construction cycle between source and engine: the source needs a
// sink before the engine exists, so the session forwards input and drops
// it during the brief unbound window.
type watchSession struct {
	logger *zap.Logger

	mu     sync.RWMutex
	engine *engine.Engine

	source    *browser.Source
	writer    *trace.Writer
	traceFile *os.File
}

// buildSink returns the input sink the source should feed: the session
// itself, wrapped in a trace recorder when tracing is on.
func (s *watchSession) buildSink(cfg *config.Config, logger *zap.Logger) (schemas.InputSink, error) {
	if cfg.Watch.TracePath == "" {
		return s, nil
	}
	path, err := homedir.Expand(cfg.Watch.TracePath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve trace path %q: %w", cfg.Watch.TracePath, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create trace file: %w", err)
	}
	s.traceFile = f
	s.writer = trace.NewWriter(f, logger)
	logger.Info("Tracing session.", zap.String("path", path))
	return trace.NewRecorder(s, s.writer), nil
}

func (s *watchSession) bind(e *engine.Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

func (s *watchSession) bound() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// onElementAdded registers each discovered element persistently, so the
// session keeps observing it across repeated predictions.
func (s *watchSession) onElementAdded(ev schemas.ElementAddedEvent) {
	e := s.bound()
	if e == nil {
		return
	}
	if s.writer != nil {
		s.writer.RecordElementAdded(ev)
	}
	result, err := e.Register(ev.Handle, schemas.RegisterOptions{
		Callback:   func() {},
		Name:       ev.Name,
		Persistent: true,
	})
	if err != nil {
		s.logger.Warn("Failed to register discovered element.",
			zap.String("handle", string(ev.Handle)), zap.Error(err))
		return
	}
	if !result.Registered {
		s.logger.Debug("Registration declined by device policy.",
			zap.String("handle", string(ev.Handle)), zap.String("reason", result.Reason))
	}
}

// onTabbables persists tab-order pushes, so a replayed trace resolves
// the same tab targets the live page did.
func (s *watchSession) onTabbables(ev schemas.TabbablesEvent) {
	if s.writer != nil {
		s.writer.RecordTabbables(ev)
	}
}

// onCallbackFired is the global hook: in watch mode a prediction's only
// consumer is the log.
func (s *watchSession) onCallbackFired(ev schemas.CallbackFiredEvent) {
	fields := []zap.Field{
		zap.String("element", ev.Element.Name),
		zap.String("kind", string(ev.Hit.Kind)),
		zap.String("subtype", string(ev.Hit.Subtype)),
		zap.Int64("total_fires", ev.GlobalHits.Total),
	}
	if ev.PredictedPoint != nil {
		fields = append(fields,
			zap.Float64("predicted_x", ev.PredictedPoint.X),
			zap.Float64("predicted_y", ev.PredictedPoint.Y),
		)
	}
	s.logger.Info("Predicted interaction.", fields...)
}

func (s *watchSession) logSummary() {
	e := s.bound()
	if e == nil {
		return
	}
	snap := e.Snapshot()
	s.logger.Info("Session complete.",
		zap.Int("elements", len(snap.Elements)),
		zap.Int64("mouse_fires", snap.GlobalHits.Mouse.Hover+snap.GlobalHits.Mouse.Trajectory),
		zap.Int64("tab_fires", snap.GlobalHits.Tab.Forwards+snap.GlobalHits.Tab.Reverse),
		zap.Int64("scroll_fires", scrollTotal(snap.GlobalHits.Scroll)),
		zap.Int64("total_fires", snap.GlobalHits.Total),
	)
}

func (s *watchSession) close() {
	if s.source != nil {
		s.source.Detach()
	}
	if e := s.bound(); e != nil {
		e.Close()
	}
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			s.logger.Warn("Trace writer reported an error on close.", zap.Error(err))
		}
	}
	if s.traceFile != nil {
		if err := s.traceFile.Close(); err != nil {
			s.logger.Warn("Failed to close trace file.", zap.Error(err))
		}
	}
}

func scrollTotal(s schemas.ScrollHits) int64 {
	return s.Up + s.Down + s.Left + s.Right
}

// -- InputSink forwarding --

func (s *watchSession) PointerMove(ev schemas.PointerMoveEvent) {
	if e := s.bound(); e != nil {
		e.PointerMove(ev)
	}
}

func (s *watchSession) KeyDown(ev schemas.KeyDownEvent) {
	if e := s.bound(); e != nil {
		e.KeyDown(ev)
	}
}

func (s *watchSession) FocusIn(ev schemas.FocusInEvent) {
	if e := s.bound(); e != nil {
		e.FocusIn(ev)
	}
}

func (s *watchSession) ApplyViewportBatch(batch schemas.ViewportBatch) {
	if e := s.bound(); e != nil {
		e.ApplyViewportBatch(batch)
	}
}

func (s *watchSession) HandleDisconnect(ev schemas.DisconnectEvent) {
	if e := s.bound(); e != nil {
		e.HandleDisconnect(ev)
	}
}

func (s *watchSession) NotifyMutation() {
	if e := s.bound(); e != nil {
		e.NotifyMutation()
	}
}
