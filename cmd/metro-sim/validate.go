package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metro-sim/internal/config"
	"metro-sim/internal/sim"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the metro configuration against its CUE schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateWithCue(configPath, schemaPath); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Every line must be drivable, not only the selected one.
		for _, l := range cfg.Lines {
			sc := sim.Config{
				Path:         l.Path,
				Step:         cfg.Simulation.Step,
				VehicleID:    config.DefaultVehicleID(l.ID),
				RouteID:      l.ID,
				OccupancyMin: cfg.Simulation.OccupancyMin,
				OccupancyMax: cfg.Simulation.OccupancyMax,
			}
			if _, err := sim.NewSimulator(sc); err != nil {
				return fmt.Errorf("line %s: %w", l.ID, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d lines, %d stations, simulating %s as %s)\n",
			configPath, len(cfg.Lines), len(cfg.Stations), cfg.Simulation.Line, cfg.Simulation.VehicleID)
		return nil
	},
}
