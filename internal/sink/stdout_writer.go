// Writers printing vehicle snapshots to STDOUT
package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"metro-sim/internal/vehicle"
)

// JSONStdoutWriter prints one JSON object per snapshot.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) Name() string { return "stdout" }

// Write outputs a snapshot in JSON format.
func (w *JSONStdoutWriter) Write(st vehicle.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
	colorOrange = "\x1b[38;5;208m"
	colorGray   = "\x1b[90m"
)

var ansi = map[vehicle.Color]string{
	vehicle.ColorGreen:  colorGreen,
	vehicle.ColorYellow: colorYellow,
	vehicle.ColorOrange: colorOrange,
	vehicle.ColorRed:    colorRed,
	vehicle.ColorBlue:   colorBlue,
}

// ColorStdoutWriter prints human-friendly, colorized snapshots.
type ColorStdoutWriter struct {
	out io.Writer
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter() *ColorStdoutWriter {
	return &ColorStdoutWriter{out: os.Stdout}
}

func (w *ColorStdoutWriter) Name() string { return "stdout-color" }

// Write outputs a snapshot with the line and occupancy colours.
func (w *ColorStdoutWriter) Write(st vehicle.State) error {
	band := st.Band()
	_, err := fmt.Fprintf(w.out, "%s[%s]%s %s%s%s %s lat=%.6f lon=%.6f %soccupancy=%d%% (%s)%s\n",
		colorGray, st.UpdatedAt().UTC().Format(time.RFC3339), colorReset,
		ansi[st.LineColor()], st.Subtitle(), colorReset,
		st.Title(),
		st.Location.Latitude, st.Location.Longitude,
		ansi[band.Color()], st.Occupancy, band, colorReset,
	)
	return err
}
