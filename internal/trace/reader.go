package trace

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/presage/api/schemas"
)

// maxLineBytes bounds a single trace line. Viewport batches dominate line
// size and stay far below this.
const maxLineBytes = 4 << 20

// ReplayOptions controls pacing.
type ReplayOptions struct {
	// Speed scales the recorded gaps between records: 1 replays in real
	// time, 2 at double speed. Zero or negative disables gap pacing and
	// replays as fast as the rate cap allows.
	Speed float64
	// MaxEventRate caps dispatch in records per second. Zero means no cap.
	MaxEventRate float64
}

// ReplayStats summarizes one replay pass.
type ReplayStats struct {
	// Records is the number of well-formed records read.
	Records int
	// Inputs is the number of records dispatched to the sink.
	Inputs int
	// Events is the number of recorded engine events, which replay skips.
	Events int
	// Skipped counts well-formed records of unknown kind.
	Skipped int
	// Malformed counts lines that did not parse.
	Malformed int
}

// Dispatch names the consumers a replay drives.
type Dispatch struct {
	// Sink receives the engine input surface. Required.
	Sink schemas.InputSink
	// Tabbables, when set, is fed the recorded tab ordering so tab
	// prediction resolves against the same data the live session saw.
	Tabbables *ReplayTabbables
	// Register, when set, is called for each recorded element discovery
	// so the replay session can mirror the live registration set.
	Register func(schemas.ElementAddedEvent)
}

// ReplayTabbables is a TabbableProvider backed by trace records instead
// of a live page.
type ReplayTabbables struct {
	mu      sync.Mutex
	handles []schemas.ElementHandle
}

func NewReplayTabbables() *ReplayTabbables {
	return &ReplayTabbables{}
}

// Tabbables returns the most recently recorded ordering.
func (r *ReplayTabbables) Tabbables() []schemas.ElementHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.ElementHandle(nil), r.handles...)
}

// Invalidate is a no-op: the trace itself carries every update.
func (r *ReplayTabbables) Invalidate() {}

func (r *ReplayTabbables) set(handles []schemas.ElementHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = handles
}

// replayState carries the pacing and counters shared by Replay and Follow.
type replayState struct {
	d       Dispatch
	opts    ReplayOptions
	logger  *zap.Logger
	limiter *rate.Limiter
	last    time.Time
	stats   ReplayStats
}

func newReplayState(d Dispatch, opts ReplayOptions, logger *zap.Logger) *replayState {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.MaxEventRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxEventRate), 1)
	}
	return &replayState{
		d:       d,
		opts:    opts,
		logger:  logger.With(zap.String("component", "trace")),
		limiter: limiter,
	}
}

// Replay reads a complete trace from r and drives the sink with its input
// records, pacing by the recorded timestamps.
func Replay(ctx context.Context, r io.Reader, d Dispatch, opts ReplayOptions, logger *zap.Logger) (ReplayStats, error) {
	st := newReplayState(d, opts, logger)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := st.handleLine(ctx, scanner.Bytes(), true); err != nil {
			return st.stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return st.stats, fmt.Errorf("read trace: %w", err)
	}
	return st.stats, nil
}

// Follow tails the trace file at path and dispatches records as they are
// appended, until the context ends. Gap pacing is skipped; arrival order
// already paces a live trace.
func Follow(ctx context.Context, path string, d Dispatch, opts ReplayOptions, logger *zap.Logger) (ReplayStats, error) {
	st := newReplayState(d, opts, logger)

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return st.stats, fmt.Errorf("tail trace file: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return st.stats, ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return st.stats, nil
			}
			if line.Err != nil {
				st.logger.Warn("Trace tailer reported an error.", zap.Error(line.Err))
				continue
			}
			if err := st.handleLine(ctx, []byte(line.Text), false); err != nil {
				return st.stats, err
			}
		}
	}
}

func (st *replayState) handleLine(ctx context.Context, raw []byte, pace bool) error {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		st.stats.Malformed++
		st.logger.Warn("Skipping malformed trace line.", zap.Error(err))
		return nil
	}
	st.stats.Records++

	if pace && st.opts.Speed > 0 && !st.last.IsZero() && rec.Time.After(st.last) {
		gap := time.Duration(float64(rec.Time.Sub(st.last)) / st.opts.Speed)
		timer := time.NewTimer(gap)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if !rec.Time.IsZero() {
		st.last = rec.Time
	}

	if err := st.limiter.Wait(ctx); err != nil {
		return err
	}
	st.dispatch(rec)
	return nil
}

func (st *replayState) dispatch(rec Record) {
	if strings.HasPrefix(rec.Kind, eventKindPrefix) {
		st.stats.Events++
		return
	}

	decode := func(v any) bool {
		if err := json.Unmarshal(rec.Payload, v); err != nil {
			st.stats.Malformed++
			st.logger.Warn("Skipping trace record with undecodable payload.",
				zap.String("kind", rec.Kind), zap.Uint64("seq", rec.Seq), zap.Error(err))
			return false
		}
		return true
	}

	switch rec.Kind {
	case KindPointerMove:
		var ev schemas.PointerMoveEvent
		if decode(&ev) {
			st.d.Sink.PointerMove(ev)
			st.stats.Inputs++
		}
	case KindKeyDown:
		var ev schemas.KeyDownEvent
		if decode(&ev) {
			st.d.Sink.KeyDown(ev)
			st.stats.Inputs++
		}
	case KindFocusIn:
		var ev schemas.FocusInEvent
		if decode(&ev) {
			st.d.Sink.FocusIn(ev)
			st.stats.Inputs++
		}
	case KindViewport:
		var batch schemas.ViewportBatch
		if decode(&batch) {
			st.d.Sink.ApplyViewportBatch(batch)
			st.stats.Inputs++
		}
	case KindElementAdded:
		var ev schemas.ElementAddedEvent
		if decode(&ev) {
			if st.d.Register != nil {
				st.d.Register(ev)
			}
			st.stats.Inputs++
		}
	case KindDisconnect:
		var ev schemas.DisconnectEvent
		if decode(&ev) {
			st.d.Sink.HandleDisconnect(ev)
			st.stats.Inputs++
		}
	case KindTabbables:
		var ev schemas.TabbablesEvent
		if decode(&ev) {
			if st.d.Tabbables != nil {
				st.d.Tabbables.set(ev.Handles)
			}
			st.stats.Inputs++
		}
	case KindMutation:
		st.d.Sink.NotifyMutation()
		st.stats.Inputs++
	default:
		st.stats.Skipped++
		st.logger.Debug("Skipping trace record of unknown kind.",
			zap.String("kind", rec.Kind), zap.Uint64("seq", rec.Seq))
	}
}
