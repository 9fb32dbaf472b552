// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/presage/cmd"
	"github.com/xkilldash9x/presage/internal/observability"
)

// main is the entry point for the presage CLI.
func main() {
	// Interrupt signals cancel the context so long-running sessions
	// (watch, replay --follow) can shut down and flush their traces.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}
