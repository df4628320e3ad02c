// Package sink exports vehicle snapshots to stdout, files and message
// infrastructure.
package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"metro-sim/internal/broker"
	"metro-sim/internal/vehicle"
)

// Writer consumes vehicle snapshots.
type Writer interface {
	Write(vehicle.State) error
}

// BatchWriter is implemented by writers that can flush several snapshots in
// one call.
type BatchWriter interface {
	WriteBatch([]vehicle.State) error
}

// Named writers report a short name used in logs and errors.
type Named interface {
	Name() string
}

// WriteError wraps a failed export.
type WriteError struct {
	Sink      string
	VehicleID string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink %s: write %s: %v", e.Sink, e.VehicleID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Message is the payload published on message buses.
type Message struct {
	vehicle.State
	OccupancyBand string `json:"occupancyBand"`
	LineColor     string `json:"lineColor"`
}

// NewMessage derives the bus payload for st.
func NewMessage(st vehicle.State) Message {
	return Message{
		State:         st,
		OccupancyBand: st.Band().String(),
		LineColor:     string(st.LineColor()),
	}
}

// Attach subscribes w to vehicle updates on b. Failed writes are logged and
// reported on the broker's error channel.
func Attach(b *broker.Broker, w Writer, log *slog.Logger) *broker.Subscription {
	name := nameOf(w)
	return b.OnVehicleUpdate(func(st vehicle.State) {
		err := w.Write(st)
		if err == nil {
			return
		}
		var we *WriteError
		if !errors.As(err, &we) {
			err = &WriteError{Sink: name, VehicleID: st.ID, Err: err}
		}
		log.Error("sink write failed", "sink", name, "vehicle_id", st.ID, "err", err)
		b.ReportError(err)
	})
}

func nameOf(w Writer) string {
	if n, ok := w.(Named); ok {
		return n.Name()
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", w), "*")
}

// subjectToken makes s safe for use as one token of a NATS subject or AMQP
// routing key.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "#", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
