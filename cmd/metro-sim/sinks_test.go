package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"metro-sim/internal/config"
	"metro-sim/internal/logging"
	"metro-sim/internal/sink"
	"metro-sim/internal/vehicle"
)

func TestNewSinksPrintOnly(t *testing.T) {
	cfg := &config.Config{Sinks: config.Sinks{NATS: config.NATS{URL: "nats://127.0.0.1:1"}}}
	w, cleanup, err := newSinks(cfg, sinkOptions{PrintOnly: true, Stdout: true}, logging.Discard())
	if err != nil {
		t.Fatalf("newSinks returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sink.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sink.JSONStdoutWriter, got %T", w)
	}
}

func TestNewSinksColor(t *testing.T) {
	w, cleanup, err := newSinks(nil, sinkOptions{Stdout: true, Color: true}, logging.Discard())
	if err != nil {
		t.Fatalf("newSinks returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*sink.ColorStdoutWriter); !ok {
		t.Fatalf("expected *sink.ColorStdoutWriter, got %T", w)
	}
}

func TestNewSinksNothingEnabled(t *testing.T) {
	w, cleanup, err := newSinks(&config.Config{}, sinkOptions{}, logging.Discard())
	if err != nil {
		t.Fatalf("newSinks returned error: %v", err)
	}
	cleanup()
	if w != nil {
		t.Fatalf("expected no writer, got %T", w)
	}
}

func TestNewSinksLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.log")
	w, cleanup, err := newSinks(&config.Config{}, sinkOptions{Stdout: true, LogFile: path}, logging.Discard())
	if err != nil {
		t.Fatalf("newSinks returned error: %v", err)
	}
	mw, ok := w.(*sink.MultiWriter)
	if !ok || len(mw.Writers()) != 2 {
		t.Fatalf("expected multi writer with two sinks, got %T", w)
	}
	fw, ok := mw.Writers()[1].(*sink.FileWriter)
	if !ok {
		t.Fatalf("expected *sink.FileWriter, got %T", mw.Writers()[1])
	}
	if err := fw.Write(vehicle.State{ID: "metro_L1_1", RouteID: "L1", LastUpdate: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	cleanup()
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `"id":"metro_L1_1"`) {
		t.Fatalf("log file content %q (%v)", data, err)
	}
}

func TestNewSinksBadGreptimeEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.log")
	cfg := &config.Config{Sinks: config.Sinks{Greptime: config.Greptime{Endpoint: "greptime:notaport"}}}
	if _, _, err := newSinks(cfg, sinkOptions{LogFile: path}, logging.Discard()); err == nil {
		t.Fatalf("expected endpoint error")
	}
}

func TestRenderLines(t *testing.T) {
	cfg, err := config.Load("../../config/metro.yaml", "../../schemas/metro.cue")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var buf bytes.Buffer
	renderLines(&buf, cfg)
	out := buf.String()
	for _, want := range []string{"L1 *", "L2", "L3", "Hospital Metropolitano", "Zaragoza"} {
		if !strings.Contains(out, want) {
			t.Fatalf("lines output missing %q:\n%s", want, out)
		}
	}
}

func TestPathLength(t *testing.T) {
	path := []vehicle.GeoPoint{{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 1}, {Latitude: 0, Longitude: 2}}
	if km := pathLength(path) / 1000; km < 222 || km > 223 {
		t.Fatalf("path length %.2f km", km)
	}
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "--config", "../../config/metro.yaml", "--schema", "../../schemas/metro.cue", "--log-level", "error"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "ok (3 lines, 6 stations") {
		t.Fatalf("validate output %q", out.String())
	}
}
