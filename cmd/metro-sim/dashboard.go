package main

import (
	"github.com/spf13/cobra"

	"metro-sim/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the GreptimeDB export",
	Long:  "dashboard renders Grafana dashboard JSON for the configured GreptimeDB table. The datasource UID is read from " + dashboard.DatasourceEnv + ".",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := dashboard.Render(dashboardOut, dashboard.Params{
			Table: cfg.Sinks.Greptime.Table,
			Lines: cfg.Lines,
		}); err != nil {
			return err
		}
		logger.Info("dashboards rendered", "out", dashboardOut)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
