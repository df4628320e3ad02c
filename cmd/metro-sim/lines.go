package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"metro-sim/internal/config"
	"metro-sim/internal/vehicle"
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "List configured metro lines and their stations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		renderLines(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var lineColors = map[vehicle.Color]lipgloss.Color{
	vehicle.ColorGreen:  lipgloss.Color("2"),
	vehicle.ColorYellow: lipgloss.Color("3"),
	vehicle.ColorOrange: lipgloss.Color("208"),
	vehicle.ColorRed:    lipgloss.Color("1"),
	vehicle.ColorBlue:   lipgloss.Color("4"),
}

func renderLines(w io.Writer, cfg *config.Config) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Line", "Name", "Colour", "Points", "Length km", "Stations")
	for _, l := range cfg.Lines {
		var names []string
		for _, st := range cfg.StationsOn(l.ID) {
			names = append(names, st.Name)
		}
		id := l.ID
		if l.ID == cfg.Simulation.Line {
			id += " *"
		}
		t.Row(
			id,
			l.Name,
			lipgloss.NewStyle().Foreground(lineColors[l.Color()]).Render(string(l.Color())),
			fmt.Sprint(len(l.Path)),
			fmt.Sprintf("%.1f", pathLength(l.Path)/1000),
			strings.Join(names, ", "),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func pathLength(path []vehicle.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += vehicle.Distance(path[i-1], path[i])
	}
	return total
}
