package vehicle

// OccupancyBand is a coarse classification of an occupancy percentage.
type OccupancyBand int

const (
	OccupancyLow OccupancyBand = iota
	OccupancyMedium
	OccupancyHigh
	OccupancyVeryHigh
)

// Color is a symbolic display colour; rendering is left to consumers.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
)

// ClassifyOccupancy maps a 0-100 percentage to its band.
func ClassifyOccupancy(pct int) OccupancyBand {
	switch {
	case pct < 30:
		return OccupancyLow
	case pct < 60:
		return OccupancyMedium
	case pct < 85:
		return OccupancyHigh
	default:
		return OccupancyVeryHigh
	}
}

func (b OccupancyBand) String() string {
	switch b {
	case OccupancyLow:
		return "Low"
	case OccupancyMedium:
		return "Medium"
	case OccupancyHigh:
		return "High"
	default:
		return "Very High"
	}
}

// Color returns the band's indicator colour.
func (b OccupancyBand) Color() Color {
	switch b {
	case OccupancyLow:
		return ColorGreen
	case OccupancyMedium:
		return ColorYellow
	case OccupancyHigh:
		return ColorOrange
	default:
		return ColorRed
	}
}

// LineColor maps a metro line id to its colour.
func LineColor(routeID string) Color {
	switch routeID {
	case "L1":
		return ColorYellow
	case "L2":
		return ColorGreen
	case "L3":
		return ColorOrange
	default:
		return ColorBlue
	}
}
