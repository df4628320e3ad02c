package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"metro-sim/internal/broker"
	"metro-sim/internal/sink"
	"metro-sim/internal/vehicle"
)

func TestObserveVehicle(t *testing.T) {
	c := NewCollector(2*time.Second, 500*time.Millisecond)
	st := vehicle.State{ID: "metro_L1_1", RouteID: "L1", Occupancy: 88, LastUpdate: 1000}
	c.ObserveVehicle(st)
	st.LastUpdate = 3000
	st.Occupancy = 12
	c.ObserveVehicle(st)

	if got := testutil.ToFloat64(c.VehicleUpdates.WithLabelValues("L1")); got != 2 {
		t.Fatalf("updates=%v", got)
	}
	if got := testutil.ToFloat64(c.Occupancy.WithLabelValues("metro_L1_1", "L1")); got != 12 {
		t.Fatalf("occupancy=%v", got)
	}
	if got := testutil.ToFloat64(c.OccupancyBands.WithLabelValues("Very High")); got != 1 {
		t.Fatalf("very high band=%v", got)
	}
	if got := testutil.ToFloat64(c.TickInterval); got != 2 {
		t.Fatalf("tick interval=%v", got)
	}
	if n := testutil.CollectAndCount(c.UpdateGap); n != 1 {
		t.Fatalf("gap histogram series=%d", n)
	}
}

func TestObserveStatusAndErrors(t *testing.T) {
	c := NewCollector(time.Second, 0)
	c.ObserveStatus(broker.Connecting)
	c.ObserveStatus(broker.Connected)
	if got := testutil.ToFloat64(c.ConnectionStatus); got != 2 {
		t.Fatalf("status gauge=%v", got)
	}
	if got := testutil.ToFloat64(c.StatusTransitions.WithLabelValues("connecting")); got != 1 {
		t.Fatalf("connecting transitions=%v", got)
	}

	c.ObserveError(&broker.ConnectionError{Op: "connect", Err: broker.ErrConnectAborted})
	c.ObserveError(&sink.WriteError{Sink: "nats", VehicleID: "v", Err: errors.New("down")})
	c.ObserveError(errors.New("other"))
	for _, kind := range []string{"connection", "sink", "other"} {
		if got := testutil.ToFloat64(c.Errors.WithLabelValues(kind)); got != 1 {
			t.Fatalf("errors{kind=%s}=%v", kind, got)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(time.Second, 0)
	c.ObserveStatus(broker.Connected)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "metro_connection_status 2") {
		t.Fatalf("metrics output missing status gauge:\n%s", body)
	}
}
