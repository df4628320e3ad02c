package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metro-sim/internal/broker"
	"metro-sim/internal/sink"
	"metro-sim/internal/vehicle"
)

type Collector struct {
	reg *prometheus.Registry

	VehicleUpdates    *prometheus.CounterVec // route
	Occupancy         *prometheus.GaugeVec   // vehicle_id, route
	OccupancyBands    *prometheus.CounterVec // band
	UpdateGap         prometheus.Histogram
	ConnectionStatus  prometheus.Gauge
	StatusTransitions *prometheus.CounterVec // status
	Errors            *prometheus.CounterVec // kind: connection|sink|other

	TickInterval   prometheus.Gauge // seconds
	ConnectLatency prometheus.Gauge // seconds

	mu         sync.Mutex
	lastUpdate map[string]int64
}

func NewCollector(tickInterval, connectLatency time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		VehicleUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metro_vehicle_updates_total",
			Help: "Vehicle snapshots delivered to subscribers.",
		}, []string{"route"}),
		Occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "metro_vehicle_occupancy_percent",
			Help: "Last reported occupancy per vehicle.",
		}, []string{"vehicle_id", "route"}),
		OccupancyBands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metro_vehicle_occupancy_band_total",
			Help: "Snapshots per occupancy band.",
		}, []string{"band"}),
		UpdateGap: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metro_vehicle_update_gap_seconds",
			Help:    "Time between consecutive snapshots of the same vehicle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metro_connection_status",
			Help: "0 disconnected, 1 connecting, 2 connected.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metro_connection_transitions_total",
			Help: "Connection status transitions by target status.",
		}, []string{"status"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metro_errors_total",
			Help: "Errors published on the broker error channel.",
		}, []string{"kind"}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metro_tick_interval_seconds",
			Help: "Configured tick interval in seconds.",
		}),
		ConnectLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metro_connect_latency_seconds",
			Help: "Configured simulated connect latency in seconds.",
		}),
		lastUpdate: make(map[string]int64),
	}

	reg.MustRegister(
		c.VehicleUpdates, c.Occupancy, c.OccupancyBands, c.UpdateGap,
		c.ConnectionStatus, c.StatusTransitions, c.Errors,
		c.TickInterval, c.ConnectLatency,
	)

	c.TickInterval.Set(tickInterval.Seconds())
	c.ConnectLatency.Set(connectLatency.Seconds())

	return c
}

// Attach subscribes the collector to all broker event streams.
func (c *Collector) Attach(b *broker.Broker) []*broker.Subscription {
	return []*broker.Subscription{
		b.OnVehicleUpdate(c.ObserveVehicle),
		b.OnConnectionStatus(c.ObserveStatus),
		b.OnError(c.ObserveError),
	}
}

func (c *Collector) ObserveVehicle(st vehicle.State) {
	c.VehicleUpdates.WithLabelValues(st.RouteID).Inc()
	c.Occupancy.WithLabelValues(st.ID, st.RouteID).Set(float64(st.Occupancy))
	c.OccupancyBands.WithLabelValues(st.Band().String()).Inc()

	c.mu.Lock()
	prev, ok := c.lastUpdate[st.ID]
	c.lastUpdate[st.ID] = st.LastUpdate
	c.mu.Unlock()
	if ok && st.LastUpdate > prev {
		c.UpdateGap.Observe(float64(st.LastUpdate-prev) / 1000)
	}
}

func (c *Collector) ObserveStatus(s broker.Status) {
	c.ConnectionStatus.Set(float64(s))
	c.StatusTransitions.WithLabelValues(s.String()).Inc()
}

func (c *Collector) ObserveError(err error) {
	var ce *broker.ConnectionError
	var we *sink.WriteError
	switch {
	case errors.As(err, &ce):
		c.Errors.WithLabelValues("connection").Inc()
	case errors.As(err, &we):
		c.Errors.WithLabelValues("sink").Inc()
	default:
		c.Errors.WithLabelValues("other").Inc()
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "err", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}
