package engine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/observability"
)

var (
	sharedEngine atomic.Pointer[Engine]
	sharedOnce   sync.Once
)

// Initialize installs the process-wide engine. The first call wins;
// later calls return the already-installed instance unchanged, so
// wiring code and library consumers can both call it safely.
func Initialize(initial schemas.Settings, logger *zap.Logger, opts ...Option) *Engine {
	sharedOnce.Do(func() {
		sharedEngine.Store(New(initial, logger, opts...))
	})
	return sharedEngine.Load()
}

// Shared returns the process-wide engine, lazily creating one with
// default settings and the global logger when Initialize was never
// called.
func Shared() *Engine {
	if e := sharedEngine.Load(); e != nil {
		return e
	}
	return Initialize(schemas.DefaultSettings(), observability.GetLogger())
}

// ResetForTest closes and discards the shared engine so the next
// Initialize or Shared call starts fresh. Test use only.
func ResetForTest() {
	if e := sharedEngine.Load(); e != nil {
		e.Close()
	}
	sharedEngine.Store(nil)
	sharedOnce = sync.Once{}
}
