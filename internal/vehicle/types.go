// Vehicle snapshot types shared by the simulator and its consumers
package vehicle

import (
	"fmt"
	"time"
)

// GeoPoint holds a latitude/longitude pair in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" yaml:"lat"`
	Longitude float64 `json:"longitude" yaml:"lon"`
}

// Lerp returns the point at fraction t along the segment from a to b.
func Lerp(a, b GeoPoint, t float64) GeoPoint {
	return GeoPoint{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
	}
}

// State is one snapshot of a simulated vehicle. A newer snapshot with the
// same ID supersedes it; snapshots are never updated in place.
type State struct {
	ID         string   `json:"id"`
	Location   GeoPoint `json:"location"`
	Occupancy  int      `json:"occupancy"`
	RouteID    string   `json:"routeId"`
	LastUpdate int64    `json:"lastUpdate"` // unix millis
}

// UpdatedAt converts LastUpdate to a time.Time.
func (s State) UpdatedAt() time.Time {
	return time.UnixMilli(s.LastUpdate)
}

// Band classifies the snapshot's occupancy.
func (s State) Band() OccupancyBand {
	return ClassifyOccupancy(s.Occupancy)
}

// LineColor returns the display colour of the snapshot's route.
func (s State) LineColor() Color {
	return LineColor(s.RouteID)
}

func (s State) Title() string    { return fmt.Sprintf("Train %s", s.ID) }
func (s State) Subtitle() string { return fmt.Sprintf("Line %s", s.RouteID) }
