package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metro-sim/internal/sim"
)

const (
	metroConfig = "../../config/metro.yaml"
	metroSchema = "../../schemas/metro.cue"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(metroConfig, metroSchema)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(cfg.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(cfg.Lines))
	}
	l1, err := cfg.Line("L1")
	if err != nil || len(l1.Path) != 17 {
		t.Fatalf("L1 path: %d points (%v)", len(l1.Path), err)
	}
	if l1.Path[0].Latitude != 25.6790443 || l1.Path[16].Longitude != -100.3655645 {
		t.Errorf("unexpected L1 endpoints %+v %+v", l1.Path[0], l1.Path[16])
	}
	s := cfg.Simulation
	if s.TickInterval != 2*time.Second || s.ConnectLatency != 500*time.Millisecond {
		t.Errorf("timing %v/%v", s.TickInterval, s.ConnectLatency)
	}
	if s.VehicleID != "metro_L1_1" || s.Step != 0.05 || s.OccupancyMin != 10 || s.OccupancyMax != 90 {
		t.Errorf("unexpected simulation %+v", s)
	}
	if cfg.Sinks.NATS.Prefix != "metro.vehicles" || cfg.Sinks.Greptime.Table != "metro_vehicle_positions" {
		t.Errorf("unexpected sinks %+v", cfg.Sinks)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("METRO_LINE", "L3")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("CONNECT_LATENCY", "not-a-duration")
	t.Setenv("NATS_URL", "nats://example:4222")
	t.Setenv("ADMIN_ADDR", "127.0.0.1:9999")

	cfg, err := Load(metroConfig, metroSchema)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	s := cfg.Simulation
	if s.Line != "L3" || s.VehicleID != "metro_L3_1" {
		t.Errorf("line=%s vehicle=%s", s.Line, s.VehicleID)
	}
	if s.TickInterval != 250*time.Millisecond {
		t.Errorf("tick=%v", s.TickInterval)
	}
	if s.ConnectLatency != 500*time.Millisecond {
		t.Errorf("bad duration should keep file value, got %v", s.ConnectLatency)
	}
	if cfg.Sinks.NATS.URL != "nats://example:4222" || cfg.Admin.Addr != "127.0.0.1:9999" {
		t.Errorf("env not applied: %+v %+v", cfg.Sinks.NATS, cfg.Admin)
	}
}

func TestUnknownLine(t *testing.T) {
	t.Setenv("METRO_LINE", "L9")
	_, err := Load(metroConfig, metroSchema)
	if !errors.Is(err, ErrUnknownLine) {
		t.Fatalf("expected ErrUnknownLine, got %v", err)
	}
}

func TestSchemaRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"short path": `
lines:
  - id: L1
    path:
      - {lat: 25.0, lon: -100.0}
`,
		"step out of range": `
simulation:
  step: 1.5
lines:
  - id: L1
    path: [{lat: 25.0, lon: -100.0}, {lat: 25.1, lon: -100.1}]
`,
		"latitude out of range": `
lines:
  - id: L1
    path: [{lat: 95.0, lon: -100.0}, {lat: 25.1, lon: -100.1}]
`,
		"bad duration": `
simulation:
  tick_interval: soon
lines:
  - id: L1
    path: [{lat: 25.0, lon: -100.0}, {lat: 25.1, lon: -100.1}]
`,
		"unknown field": `
fleets: []
lines:
  - id: L1
    path: [{lat: 25.0, lon: -100.0}, {lat: 25.1, lon: -100.1}]
`,
		"no lines": `
simulation:
  line: L1
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeTemp(t, "metro.yaml", body)
			if err := ValidateWithCue(path, metroSchema); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateMissingFiles(t *testing.T) {
	if err := ValidateWithCue("does-not-exist.yaml", metroSchema); err == nil || !strings.Contains(err.Error(), "cannot read YAML") {
		t.Fatalf("unexpected error %v", err)
	}
	if err := ValidateWithCue(metroConfig, "does-not-exist.cue"); err == nil || !strings.Contains(err.Error(), "cannot read CUE") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMinimalConfigGetsDefaults(t *testing.T) {
	path := writeTemp(t, "metro.yaml", `
lines:
  - id: L1
    path: [{lat: 25.0, lon: -100.0}, {lat: 25.1, lon: -100.1}]
`)
	cfg, err := Load(path, metroSchema)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	sc, err := cfg.SimConfig()
	if err != nil {
		t.Fatalf("SimConfig: %v", err)
	}
	if sc.RouteID != "L1" || sc.VehicleID != "metro_L1_1" || sc.Step != sim.DefaultStep {
		t.Fatalf("unexpected sim config %+v", sc)
	}
	if _, err := sim.NewSimulator(sc); err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	opts := cfg.BrokerOptions()
	if opts.TickInterval != 2*time.Second || opts.ConnectLatency != 500*time.Millisecond {
		t.Fatalf("broker options %+v", opts)
	}
}

func TestStationsOn(t *testing.T) {
	cfg, err := Load(metroConfig, metroSchema)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	var names []string
	for _, st := range cfg.StationsOn("L3") {
		names = append(names, st.Name)
	}
	if strings.Join(names, ",") != "Zaragoza,Hospital Metropolitano" {
		t.Fatalf("L3 stations: %v", names)
	}
}

func TestLoadEnv(t *testing.T) {
	const key = "METRO_SIM_TEST_ENV_VALUE"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := writeTemp(t, ".env", key+"=from-file\n")
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("%s=%q", key, got)
	}
}
