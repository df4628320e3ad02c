// Simulator walking one vehicle along a fixed line path
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"metro-sim/internal/vehicle"
)

// Defaults mirroring the reference client.
const (
	DefaultStep         = 0.05
	DefaultOccupancyMin = 10
	DefaultOccupancyMax = 90
)

var (
	ErrInvalidPath      = errors.New("path needs at least two points")
	ErrInvalidStep      = errors.New("step must be in (0, 1]")
	ErrInvalidOccupancy = errors.New("occupancy range must satisfy 0 <= min <= max <= 100")
)

// Config describes the simulated vehicle and the path it follows.
type Config struct {
	Path         []vehicle.GeoPoint
	Step         float64
	VehicleID    string
	RouteID      string
	OccupancyMin int
	OccupancyMax int

	// Rand and Now are optional; tests inject deterministic sources.
	Rand *rand.Rand
	Now  func() time.Time
}

// Cursor is the simulator's position along the path.
type Cursor struct {
	Segment  int
	Progress float64
}

// Simulator produces a looping stream of vehicle snapshots. It is not safe
// for concurrent use; the broker serialises access.
type Simulator struct {
	path      []vehicle.GeoPoint
	step      float64
	perSeg    int
	vehicleID string
	routeID   string
	occMin    int
	occMax    int
	rand      *rand.Rand
	now       func() time.Time

	segment int
	tick    int // ticks taken on the current segment
}

// NewSimulator validates cfg and returns a simulator positioned at the start
// of the path.
func NewSimulator(cfg Config) (*Simulator, error) {
	if len(cfg.Path) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPath, len(cfg.Path))
	}
	step := cfg.Step
	if step == 0 {
		step = DefaultStep
	}
	if step < 0 || step > 1 || math.IsNaN(step) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidStep, cfg.Step)
	}
	occMin, occMax := cfg.OccupancyMin, cfg.OccupancyMax
	if occMin == 0 && occMax == 0 {
		occMin, occMax = DefaultOccupancyMin, DefaultOccupancyMax
	}
	if occMin < 0 || occMax > 100 || occMin > occMax {
		return nil, fmt.Errorf("%w: got [%d, %d]", ErrInvalidOccupancy, occMin, occMax)
	}
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	path := make([]vehicle.GeoPoint, len(cfg.Path))
	copy(path, cfg.Path)
	return &Simulator{
		path:      path,
		step:      step,
		perSeg:    ticksPerSegment(step),
		vehicleID: cfg.VehicleID,
		routeID:   cfg.RouteID,
		occMin:    occMin,
		occMax:    occMax,
		rand:      r,
		now:       now,
	}, nil
}

// ticksPerSegment is ceil(1/step), tolerant of float error in 1/step.
func ticksPerSegment(step float64) int {
	n := int(math.Ceil(1/step - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// Step advances the cursor by one tick and returns the snapshot at the new
// position. When the last segment completes the cursor wraps to segment 0.
func (s *Simulator) Step() vehicle.State {
	s.tick++
	if s.tick >= s.perSeg {
		s.tick = 0
		s.segment++
		if s.segment >= len(s.path)-1 {
			s.segment = 0
		}
	}
	return vehicle.State{
		ID:         s.vehicleID,
		Location:   s.Position(),
		Occupancy:  s.occMin + s.rand.Intn(s.occMax-s.occMin+1),
		RouteID:    s.routeID,
		LastUpdate: s.now().UnixMilli(),
	}
}

// Position interpolates the current location on the active segment.
func (s *Simulator) Position() vehicle.GeoPoint {
	return vehicle.Lerp(s.path[s.segment], s.path[s.segment+1], s.progress())
}

// Heading returns the compass bearing of the active segment.
func (s *Simulator) Heading() float64 {
	return vehicle.Bearing(s.path[s.segment], s.path[s.segment+1])
}

// Cursor reports the current segment index and progress in [0, 1).
func (s *Simulator) Cursor() Cursor {
	return Cursor{Segment: s.segment, Progress: s.progress()}
}

// TicksPerSegment reports how many ticks one segment takes.
func (s *Simulator) TicksPerSegment() int { return s.perSeg }

// Reset moves the cursor back to the start of the path.
func (s *Simulator) Reset() {
	s.segment = 0
	s.tick = 0
}

// Path returns a copy of the configured path.
func (s *Simulator) Path() []vehicle.GeoPoint {
	out := make([]vehicle.GeoPoint, len(s.path))
	copy(out, s.path)
	return out
}

func (s *Simulator) VehicleID() string { return s.vehicleID }
func (s *Simulator) RouteID() string   { return s.routeID }

func (s *Simulator) progress() float64 {
	return float64(s.tick) * s.step
}
