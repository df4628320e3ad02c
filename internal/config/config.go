// YAML config loader with CUE validation and environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"metro-sim/internal/broker"
	"metro-sim/internal/sim"
	"metro-sim/internal/sink"
	"metro-sim/internal/vehicle"
)

// DefaultLine is simulated when neither the file nor the environment picks one.
const DefaultLine = "L1"

// ErrUnknownLine is returned when the selected line is not configured.
var ErrUnknownLine = errors.New("unknown line")

// Simulation tunes the simulated vehicle.
type Simulation struct {
	Line           string        `yaml:"line"`
	VehicleID      string        `yaml:"vehicle_id"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	ConnectLatency time.Duration `yaml:"connect_latency"`
	Step           float64       `yaml:"step"`
	OccupancyMin   int           `yaml:"occupancy_min"`
	OccupancyMax   int           `yaml:"occupancy_max"`
}

// Line is one metro line and the polyline its trains follow.
type Line struct {
	ID   string             `yaml:"id" json:"id"`
	Name string             `yaml:"name" json:"name"`
	Path []vehicle.GeoPoint `yaml:"path" json:"path"`
}

// Color is the line's display colour.
func (l Line) Color() vehicle.Color { return vehicle.LineColor(l.ID) }

// Station is a named stop served by one or more lines.
type Station struct {
	Name     string           `yaml:"name" json:"name"`
	Location vehicle.GeoPoint `yaml:"location" json:"location"`
	Lines    []string         `yaml:"lines" json:"lines"`
}

type NATS struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

type AMQP struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Sinks configures the optional network exporters. An empty URL or endpoint
// leaves the exporter disabled.
type Sinks struct {
	NATS     NATS     `yaml:"nats"`
	AMQP     AMQP     `yaml:"amqp"`
	Greptime Greptime `yaml:"greptime"`
}

type Admin struct {
	Addr string `yaml:"addr"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

// Config is the root of config/metro.yaml.
type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Lines      []Line     `yaml:"lines"`
	Stations   []Station  `yaml:"stations"`
	Sinks      Sinks      `yaml:"sinks"`
	Admin      Admin      `yaml:"admin"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Load validates configPath against the CUE schema at schemaPath, decodes it,
// applies environment overrides and fills in defaults.
func Load(configPath, schemaPath string) (*Config, error) {
	if err := ValidateWithCue(configPath, schemaPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	cfg.applyDefaults()
	if _, err := cfg.Line(cfg.Simulation.Line); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without schema validation or defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv loads the given .env files into the process environment. Missing
// files are ignored; with no arguments ./.env is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		_ = godotenv.Load()
		return nil
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with environment variables. Durations that
// fail to parse are left untouched.
func ApplyEnv(cfg *Config) {
	s := &cfg.Simulation
	s.Line = getenvDefault("METRO_LINE", s.Line)
	s.VehicleID = getenvDefault("METRO_VEHICLE_ID", s.VehicleID)
	s.TickInterval = getenvDuration("TICK_INTERVAL", s.TickInterval)
	s.ConnectLatency = getenvDuration("CONNECT_LATENCY", s.ConnectLatency)

	cfg.Sinks.NATS.URL = getenvDefault("NATS_URL", cfg.Sinks.NATS.URL)
	cfg.Sinks.AMQP.URL = getenvDefault("AMQP_URL", cfg.Sinks.AMQP.URL)
	cfg.Sinks.Greptime.Endpoint = getenvDefault("GREPTIMEDB_ENDPOINT", cfg.Sinks.Greptime.Endpoint)
	cfg.Sinks.Greptime.Database = getenvDefault("GREPTIMEDB_DATABASE", cfg.Sinks.Greptime.Database)
	cfg.Sinks.Greptime.Table = getenvDefault("GREPTIMEDB_TABLE", cfg.Sinks.Greptime.Table)
	cfg.Admin.Addr = getenvDefault("ADMIN_ADDR", cfg.Admin.Addr)
	cfg.Metrics.Addr = getenvDefault("METRICS_ADDR", cfg.Metrics.Addr)
}

func (c *Config) applyDefaults() {
	s := &c.Simulation
	if s.Line == "" {
		s.Line = DefaultLine
	}
	if s.VehicleID == "" {
		s.VehicleID = DefaultVehicleID(s.Line)
	}
	if s.TickInterval <= 0 {
		s.TickInterval = broker.DefaultTickInterval
	}
	if s.ConnectLatency <= 0 {
		s.ConnectLatency = broker.DefaultConnectLatency
	}
	if s.Step == 0 {
		s.Step = sim.DefaultStep
	}
	if s.OccupancyMin == 0 && s.OccupancyMax == 0 {
		s.OccupancyMin, s.OccupancyMax = sim.DefaultOccupancyMin, sim.DefaultOccupancyMax
	}
	if c.Sinks.NATS.Prefix == "" {
		c.Sinks.NATS.Prefix = sink.DefaultNATSPrefix
	}
	if c.Sinks.AMQP.Exchange == "" {
		c.Sinks.AMQP.Exchange = sink.DefaultAMQPExchange
	}
	if c.Sinks.Greptime.Database == "" {
		c.Sinks.Greptime.Database = sink.DefaultGreptimeDatabase
	}
	if c.Sinks.Greptime.Table == "" {
		c.Sinks.Greptime.Table = sink.DefaultGreptimeTable
	}
}

// DefaultVehicleID names the single train simulated on line.
func DefaultVehicleID(line string) string { return "metro_" + line + "_1" }

// Line looks up a configured line by id.
func (c *Config) Line(id string) (Line, error) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, nil
		}
	}
	return Line{}, fmt.Errorf("%w %q", ErrUnknownLine, id)
}

// StationsOn returns the stations served by line id.
func (c *Config) StationsOn(id string) []Station {
	var out []Station
	for _, st := range c.Stations {
		for _, l := range st.Lines {
			if l == id {
				out = append(out, st)
				break
			}
		}
	}
	return out
}

// SimConfig builds the simulator configuration for the selected line.
func (c *Config) SimConfig() (sim.Config, error) {
	line, err := c.Line(c.Simulation.Line)
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Path:         line.Path,
		Step:         c.Simulation.Step,
		VehicleID:    c.Simulation.VehicleID,
		RouteID:      line.ID,
		OccupancyMin: c.Simulation.OccupancyMin,
		OccupancyMax: c.Simulation.OccupancyMax,
	}, nil
}

// BrokerOptions returns the broker timing taken from the simulation section.
func (c *Config) BrokerOptions() broker.Options {
	return broker.Options{
		TickInterval:   c.Simulation.TickInterval,
		ConnectLatency: c.Simulation.ConnectLatency,
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
