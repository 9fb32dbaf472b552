package trace

import (
	"bufio"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/bus"
)

// Writer appends trace records to an underlying stream. It is safe for
// concurrent use; records get their sequence numbers in write order. The
// first write error is latched and reported by Close, later writes are
// dropped silently so a full disk cannot take the session down.
type Writer struct {
	logger *zap.Logger

	mu  sync.Mutex
	buf *bufio.Writer
	seq uint64
	err error

	sub *bus.Subscription
}

// NewWriter wraps w. The caller keeps ownership of the underlying stream
// and closes it after Close has flushed.
func NewWriter(w io.Writer, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		logger: logger.With(zap.String("component", "trace")),
		buf:    bufio.NewWriter(w),
	}
}

// AttachBus records every event the bus publishes until Close.
func (w *Writer) AttachBus(b *bus.Bus) {
	w.sub = b.SubscribeAll(func(ev schemas.Event) {
		w.write(EventRecordKind(ev.Kind), ev.Timestamp, ev.Payload)
	})
}

// Close detaches from the bus, flushes buffered records, and returns the
// first error the writer ran into.
func (w *Writer) Close() error {
	if w.sub != nil {
		w.sub.Cancel()
		w.sub = nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil && w.err == nil {
		w.err = err
	}
	return w.err
}

func (w *Writer) RecordPointerMove(ev schemas.PointerMoveEvent) {
	w.write(KindPointerMove, ev.Time, ev)
}

func (w *Writer) RecordKeyDown(ev schemas.KeyDownEvent) {
	w.write(KindKeyDown, ev.Time, ev)
}

func (w *Writer) RecordFocusIn(ev schemas.FocusInEvent) {
	w.write(KindFocusIn, ev.Time, ev)
}

func (w *Writer) RecordViewportBatch(batch schemas.ViewportBatch) {
	w.write(KindViewport, batch.Time, batch)
}

func (w *Writer) RecordElementAdded(ev schemas.ElementAddedEvent) {
	w.write(KindElementAdded, ev.Time, ev)
}

func (w *Writer) RecordDisconnect(ev schemas.DisconnectEvent) {
	w.write(KindDisconnect, ev.Time, ev)
}

func (w *Writer) RecordTabbables(ev schemas.TabbablesEvent) {
	w.write(KindTabbables, ev.Time, ev)
}

func (w *Writer) RecordMutation(at time.Time) {
	w.write(KindMutation, at, struct{}{})
}

func (w *Writer) write(kind string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("Failed to encode trace payload.",
			zap.String("kind", kind), zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	w.seq++
	line, err := json.Marshal(Record{Seq: w.seq, Time: at, Kind: kind, Payload: data})
	if err != nil {
		w.logger.Error("Failed to encode trace record.",
			zap.String("kind", kind), zap.Error(err))
		return
	}
	if _, err := w.buf.Write(append(line, '\n')); err != nil {
		w.err = err
		w.logger.Error("Trace write failed; dropping further records.", zap.Error(err))
	}
}

// Recorder tees the input stream into a writer on its way to the real
// sink, so a live session leaves a replayable trace behind.
type Recorder struct {
	sink   schemas.InputSink
	writer *Writer
}

// NewRecorder wraps sink. Every input is recorded before it is applied,
// matching the order a replay will dispatch in.
func NewRecorder(sink schemas.InputSink, w *Writer) *Recorder {
	return &Recorder{sink: sink, writer: w}
}

func (r *Recorder) PointerMove(ev schemas.PointerMoveEvent) {
	r.writer.RecordPointerMove(ev)
	r.sink.PointerMove(ev)
}

func (r *Recorder) KeyDown(ev schemas.KeyDownEvent) {
	r.writer.RecordKeyDown(ev)
	r.sink.KeyDown(ev)
}

func (r *Recorder) FocusIn(ev schemas.FocusInEvent) {
	r.writer.RecordFocusIn(ev)
	r.sink.FocusIn(ev)
}

func (r *Recorder) ApplyViewportBatch(batch schemas.ViewportBatch) {
	r.writer.RecordViewportBatch(batch)
	r.sink.ApplyViewportBatch(batch)
}

func (r *Recorder) HandleDisconnect(ev schemas.DisconnectEvent) {
	r.writer.RecordDisconnect(ev)
	r.sink.HandleDisconnect(ev)
}

func (r *Recorder) NotifyMutation() {
	r.writer.RecordMutation(time.Time{})
	r.sink.NotifyMutation()
}
