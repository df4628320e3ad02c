package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"metro-sim/internal/config"
	"metro-sim/internal/sink"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
	replayColor     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded snapshot log",
	Long:  "replay feeds vehicle snapshots from a JSONL log back into the configured exporters or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.Config
		if !replayPrintOnly {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			cfg = c
		}
		writer, cleanup, err := newSinks(cfg, sinkOptions{
			PrintOnly: replayPrintOnly,
			Stdout:    true,
			Color:     replayColor,
		}, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		if writer == nil {
			return errNoSinks
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		n, err := sink.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		logger.Info("replay finished", "input", replayInput, "snapshots", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to snapshot log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 disables delays)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print snapshots to STDOUT instead of the configured exporters")
	replayCmd.Flags().BoolVar(&replayColor, "color", false, "Human readable coloured STDOUT instead of JSON")
	replayCmd.MarkFlagRequired("input")
}
