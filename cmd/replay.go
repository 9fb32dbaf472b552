// File: cmd/replay.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/presage/api/schemas"
	"github.com/xkilldash9x/presage/internal/config"
	"github.com/xkilldash9x/presage/internal/engine"
	"github.com/xkilldash9x/presage/internal/observability"
	"github.com/xkilldash9x/presage/internal/trace"
)

// newReplayCmd creates and configures the `replay` command.
func newReplayCmd() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay [trace-file]",
		Short: "Re-drive a recorded session through a fresh engine",
		Long: `Replay reads a JSON Lines trace produced by watch --trace and feeds its
input records into a new engine instance, reproducing the original
session's predictions. With --follow the trace file is tailed live, so a
running watch session can be mirrored as it records.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("replay.trace_path", cmd.Flags().Lookup("trace")); err != nil {
				return err
			}
			if err := viper.BindPFlag("replay.speed", cmd.Flags().Lookup("speed")); err != nil {
				return err
			}
			if err := viper.BindPFlag("replay.follow", cmd.Flags().Lookup("follow")); err != nil {
				return err
			}
			return viper.BindPFlag("replay.max_event_rate", cmd.Flags().Lookup("max-rate"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if len(args) > 0 {
				cfg.Replay.TracePath = args[0]
			}
			return runReplay(cmd.Context(), cfg, observability.GetLogger())
		},
	}

	replayCmd.Flags().String("trace", "", "trace file to replay (the positional argument wins when both are given)")
	replayCmd.Flags().Float64("speed", 1.0, "playback speed multiplier for recorded gaps")
	replayCmd.Flags().Bool("follow", false, "tail the trace file and dispatch records as they arrive")
	replayCmd.Flags().Float64("max-rate", 0, "cap dispatch at this many records per second (0 = uncapped)")
	return replayCmd
}

// runReplay builds a fresh engine fed from trace data instead of a
// browser and reports what the replayed session predicted.
func runReplay(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Replay.TracePath == "" {
		return fmt.Errorf("no trace to replay; pass one as an argument or set replay.trace_path")
	}
	path, err := homedir.Expand(cfg.Replay.TracePath)
	if err != nil {
		return fmt.Errorf("could not resolve trace path %q: %w", cfg.Replay.TracePath, err)
	}

	tabbables := trace.NewReplayTabbables()
	eng := engine.New(cfg.Engine.Settings(), logger,
		engine.WithTabbableProvider(tabbables),
		engine.WithGlobalCallbackHook(func(ev schemas.CallbackFiredEvent) {
			logger.Info("Replayed prediction.",
				zap.String("element", ev.Element.Name),
				zap.String("kind", string(ev.Hit.Kind)),
				zap.String("subtype", string(ev.Hit.Subtype)),
			)
		}),
	)
	defer eng.Close()

	dispatch := trace.Dispatch{
		Sink:      eng,
		Tabbables: tabbables,
		Register: func(ev schemas.ElementAddedEvent) {
			if _, err := eng.Register(ev.Handle, schemas.RegisterOptions{
				Callback:   func() {},
				Name:       ev.Name,
				Persistent: true,
			}); err != nil {
				logger.Warn("Failed to mirror recorded registration.",
					zap.String("handle", string(ev.Handle)), zap.Error(err))
			}
		},
	}
	opts := trace.ReplayOptions{
		Speed:        cfg.Replay.Speed,
		MaxEventRate: cfg.Replay.MaxEventRate,
	}

	var stats trace.ReplayStats
	if cfg.Replay.Follow {
		stats, err = trace.Follow(ctx, path, dispatch, opts, logger)
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("could not open trace file: %w", err)
		}
		defer f.Close()
		stats, err = trace.Replay(ctx, f, dispatch, opts, logger)
	}
	// Interruption is the normal way to stop a --follow session.
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	snap := eng.Snapshot()
	logger.Info("Replay complete.",
		zap.String("path", path),
		zap.Int("records", stats.Records),
		zap.Int("inputs", stats.Inputs),
		zap.Int("events", stats.Events),
		zap.Int("skipped", stats.Skipped),
		zap.Int("malformed", stats.Malformed),
		zap.Int64("callback_fires", snap.GlobalHits.Total),
	)
	return nil
}
