package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"metro-sim/internal/admin"
	"metro-sim/internal/board"
	"metro-sim/internal/broker"
	"metro-sim/internal/config"
	"metro-sim/internal/logging"
	"metro-sim/internal/metrics"
	"metro-sim/internal/sim"
	"metro-sim/internal/sink"
	"metro-sim/internal/stream"
	"metro-sim/internal/tui"
)

var (
	simLine        string
	simVehicleID   string
	simTick        time.Duration
	simLatency     time.Duration
	simPrintOnly   bool
	simColor       bool
	simQuiet       bool
	simLogFile     string
	simAdminAddr   string
	simMetricsAddr string
	simTUI         bool
	simNoConnect   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time metro vehicle simulator",
	Long:  "simulate connects the vehicle feed and publishes a snapshot of the simulated train every tick.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("line") {
			if _, err := cfg.Line(simLine); err != nil {
				return err
			}
			cfg.Simulation.Line = simLine
			if !flags.Changed("vehicle-id") {
				cfg.Simulation.VehicleID = ""
			}
		}
		if flags.Changed("vehicle-id") {
			cfg.Simulation.VehicleID = simVehicleID
		}
		if cfg.Simulation.VehicleID == "" {
			cfg.Simulation.VehicleID = config.DefaultVehicleID(cfg.Simulation.Line)
		}
		if flags.Changed("tick") {
			cfg.Simulation.TickInterval = simTick
		}
		if flags.Changed("connect-latency") {
			cfg.Simulation.ConnectLatency = simLatency
		}
		if flags.Changed("admin-addr") {
			cfg.Admin.Addr = simAdminAddr
		}
		if flags.Changed("metrics-addr") {
			cfg.Metrics.Addr = simMetricsAddr
		}

		useTUI := simTUI && term.IsTerminal(int(os.Stdout.Fd()))
		log := logger
		if useTUI {
			// The TUI owns stdout.
			log = logging.Discard()
		}

		sc, err := cfg.SimConfig()
		if err != nil {
			return err
		}
		simulator, err := sim.NewSimulator(sc)
		if err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
		opts := cfg.BrokerOptions()
		opts.Logger = log
		b := broker.New(simulator, opts)
		defer b.Close()

		writer, cleanup, err := newSinks(cfg, sinkOptions{
			PrintOnly: simPrintOnly,
			Stdout:    !simQuiet && !useTUI,
			Color:     simColor,
			LogFile:   simLogFile,
		}, log)
		if err != nil {
			return err
		}
		defer cleanup()
		if writer != nil {
			sink.Attach(b, writer, log)
		}

		bd := board.New()
		bd.Attach(b)

		collector := metrics.NewCollector(cfg.Simulation.TickInterval, cfg.Simulation.ConnectLatency)
		collector.Attach(b)

		hub := stream.NewHub(bd, log)
		hub.Attach(b)
		defer hub.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		if cfg.Metrics.Addr != "" {
			msrv := collector.Serve(cfg.Metrics.Addr, log)
			defer msrv.Close()
		}
		if cfg.Admin.Addr != "" {
			srv := admin.NewServer(b, bd, admin.Options{
				Lines:    cfg.Lines,
				Stations: cfg.Stations,
				Stream:   hub,
				Metrics:  collector.Handler(),
				Logger:   log,
			})
			go func() {
				if err := srv.Start(ctx, cfg.Admin.Addr); err != nil {
					log.Error("admin server failed", "err", err)
				}
			}()
		}

		var ui *tui.TUI
		if useTUI {
			ui = tui.New(b, fmt.Sprintf("Metro %s", cfg.Simulation.Line))
			ui.Attach(b)
			defer ui.Close()
		}

		log.Info("metro simulation starting",
			"line", cfg.Simulation.Line,
			"vehicle_id", cfg.Simulation.VehicleID,
			"tick", cfg.Simulation.TickInterval,
			"connect_latency", cfg.Simulation.ConnectLatency,
		)
		if !simNoConnect {
			b.Connect()
		}

		if ui != nil {
			select {
			case <-ctx.Done():
			case <-ui.Done():
			}
		} else {
			<-ctx.Done()
		}

		b.Disconnect()
		b.Sync()
		logging.FromContext(ctx).Info("metro simulation stopped")
		return nil
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simLine, "line", "", "Line to simulate (overrides config and METRO_LINE)")
	f.StringVar(&simVehicleID, "vehicle-id", "", "Vehicle id (default metro_<line>_1)")
	f.DurationVar(&simTick, "tick", broker.DefaultTickInterval, "Tick interval (e.g. 500ms, 2s)")
	f.DurationVar(&simLatency, "connect-latency", broker.DefaultConnectLatency, "Simulated connect latency")
	f.BoolVar(&simPrintOnly, "print-only", false, "Only print to STDOUT; skip GreptimeDB, NATS and AMQP")
	f.BoolVar(&simColor, "color", false, "Human readable coloured STDOUT instead of JSON")
	f.BoolVar(&simQuiet, "quiet", false, "Do not print snapshots to STDOUT")
	f.StringVar(&simLogFile, "log-file", "", "Path to export snapshots (JSONL)")
	f.StringVar(&simAdminAddr, "admin-addr", "", "Admin UI/API address (overrides config, empty disables)")
	f.StringVar(&simMetricsAddr, "metrics-addr", "", "Standalone Prometheus metrics address")
	f.BoolVar(&simTUI, "tui", true, "Show the terminal board when STDOUT is a terminal")
	f.BoolVar(&simNoConnect, "no-connect", false, "Start disconnected; connect from the admin UI or TUI")
}
