package broker

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a broker connection.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status as its lower-case name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	default:
		return fmt.Errorf("unknown connection status %q", b)
	}
	return nil
}

// Scope narrows a subscription request to a vehicle and/or a line.
// Both fields are optional.
type Scope struct {
	VehicleID string `json:"vehicleId,omitempty"`
	LineID    string `json:"lineId,omitempty"`
}

func (s Scope) String() string {
	v, l := s.VehicleID, s.LineID
	if v == "" {
		v = "*"
	}
	if l == "" {
		l = "*"
	}
	return "vehicle=" + v + " line=" + l
}
