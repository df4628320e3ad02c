package vehicle

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestClassifyOccupancy(t *testing.T) {
	cases := map[int]OccupancyBand{
		0:   OccupancyLow,
		29:  OccupancyLow,
		30:  OccupancyMedium,
		59:  OccupancyMedium,
		60:  OccupancyHigh,
		84:  OccupancyHigh,
		85:  OccupancyVeryHigh,
		100: OccupancyVeryHigh,
	}
	for pct, want := range cases {
		if got := ClassifyOccupancy(pct); got != want {
			t.Errorf("ClassifyOccupancy(%d)=%s, want %s", pct, got, want)
		}
	}
}

func TestBandColorAndString(t *testing.T) {
	if OccupancyVeryHigh.String() != "Very High" {
		t.Errorf("unexpected string %q", OccupancyVeryHigh.String())
	}
	if OccupancyLow.Color() != ColorGreen || OccupancyVeryHigh.Color() != ColorRed {
		t.Errorf("unexpected band colours")
	}
}

func TestLineColor(t *testing.T) {
	cases := map[string]Color{
		"L1": ColorYellow,
		"L2": ColorGreen,
		"L3": ColorOrange,
		"L9": ColorBlue,
		"":   ColorBlue,
	}
	for route, want := range cases {
		if got := LineColor(route); got != want {
			t.Errorf("LineColor(%q)=%s, want %s", route, got, want)
		}
	}
}

func TestStateJSONKeys(t *testing.T) {
	s := State{ID: "metro_L1_1", Location: GeoPoint{Latitude: 1, Longitude: 2}, Occupancy: 40, RouteID: "L1", LastUpdate: 1000}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "location", "occupancy", "routeId", "lastUpdate"} {
		if _, ok := m[key]; !ok {
			t.Fatalf("missing %s in json: %s", key, data)
		}
	}
	if !s.UpdatedAt().Equal(time.UnixMilli(1000)) {
		t.Errorf("UpdatedAt=%v", s.UpdatedAt())
	}
	if s.Title() != "Train metro_L1_1" || s.Subtitle() != "Line L1" {
		t.Errorf("unexpected title/subtitle: %q %q", s.Title(), s.Subtitle())
	}
}

func TestLerp(t *testing.T) {
	got := Lerp(GeoPoint{0, 0}, GeoPoint{10, 20}, 0.25)
	if got != (GeoPoint{2.5, 5}) {
		t.Errorf("Lerp=%+v", got)
	}
}

func TestBearingAndDistance(t *testing.T) {
	north := Bearing(GeoPoint{0, 0}, GeoPoint{1, 0})
	if math.Abs(north) > 1e-9 {
		t.Errorf("bearing north=%f", north)
	}
	east := Bearing(GeoPoint{0, 0}, GeoPoint{0, 1})
	if math.Abs(east-90) > 1e-9 {
		t.Errorf("bearing east=%f", east)
	}
	d := Distance(GeoPoint{0, 0}, GeoPoint{1, 0})
	if d < 111000 || d > 111400 {
		t.Errorf("distance one degree=%f", d)
	}
}
