// Package trace persists engine traffic as JSON Lines and replays it.
// A trace interleaves the inputs a source fed to the engine with the
// events the engine published, one record per line, in the order they
// happened. Replaying the input records through a fresh engine
// reproduces the original session; the event records are kept for
// inspection and comparison.
package trace

import (
	encodingjson "encoding/json"
	"time"

	"github.com/xkilldash9x/presage/api/schemas"
)

// Input record kinds. These are replayed.
const (
	KindPointerMove  = "input.pointerMove"
	KindKeyDown      = "input.keyDown"
	KindFocusIn      = "input.focusIn"
	KindViewport     = "input.viewport"
	KindElementAdded = "input.elementAdded"
	KindDisconnect   = "input.disconnect"
	KindTabbables    = "input.tabbables"
	KindMutation     = "input.mutation"
)

// eventKindPrefix namespaces records holding published engine events.
// They are written for observability and skipped on replay.
const eventKindPrefix = "event."

// Record is one trace line.
type Record struct {
	Seq     uint64                  `json:"seq"`
	Time    time.Time               `json:"t"`
	Kind    string                  `json:"kind"`
	Payload encodingjson.RawMessage `json:"payload,omitempty"`
}

// EventRecordKind returns the trace kind for a published engine event.
func EventRecordKind(kind schemas.EventKind) string {
	return eventKindPrefix + string(kind)
}
