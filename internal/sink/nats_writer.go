package sink

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"metro-sim/internal/vehicle"
)

// DefaultNATSPrefix is the subject prefix used when none is configured.
const DefaultNATSPrefix = "metro.vehicles"

type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSWriter publishes snapshots on <prefix>.<route>.<vehicle>.
type NATSWriter struct {
	conn   natsPublisher
	nc     *nats.Conn
	prefix string
}

// NewNATSWriter connects to url.
func NewNATSWriter(url, prefix string, log *slog.Logger) (*NATSWriter, error) {
	nc, err := nats.Connect(url,
		nats.Name("metro-sim"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultNATSPrefix
	}
	log.Info("nats writer ready", "url", nc.ConnectedUrl(), "prefix", prefix)
	return &NATSWriter{conn: nc, nc: nc, prefix: prefix}, nil
}

func (w *NATSWriter) Name() string { return "nats" }

// Subject returns the subject a snapshot is published on.
func (w *NATSWriter) Subject(st vehicle.State) string {
	return w.prefix + "." + subjectToken(st.RouteID) + "." + subjectToken(st.ID)
}

// Write publishes a snapshot.
func (w *NATSWriter) Write(st vehicle.State) error {
	b, err := json.Marshal(NewMessage(st))
	if err != nil {
		return err
	}
	return w.conn.Publish(w.Subject(st), b)
}

// Close drains pending messages and closes the connection.
func (w *NATSWriter) Close() error {
	if w.nc == nil {
		return nil
	}
	return w.nc.Drain()
}
