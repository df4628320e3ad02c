package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"metro-sim/internal/config"
	"metro-sim/internal/logging"
)

var (
	configPath string
	schemaPath string
	envFiles   []string
	logLevel   string
	logFormat  string

	logger = logging.New()
)

var rootCmd = &cobra.Command{
	Use:   "metro-sim",
	Short: "Metro vehicle feed simulator",
	Long:  "metro-sim walks a simulated train along a metro line and publishes its position and occupancy to subscribers and exporters.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.NewWithOptions(logging.Options{Level: logLevel, Format: logFormat})
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return config.LoadEnv(envFiles...)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return cfg, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "config/metro.yaml", "Path to metro configuration YAML")
	pf.StringVar(&schemaPath, "schema", "schemas/metro.cue", "Path to CUE schema file")
	pf.StringSliceVar(&envFiles, "env", nil, "Additional .env files to load (default ./.env)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(linesCmd)
	rootCmd.AddCommand(dashboardCmd)
}
