package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"metro-sim/internal/vehicle"
)

const (
	DefaultGreptimeTable    = "metro_vehicle_positions"
	DefaultGreptimeDatabase = "public"
	defaultGreptimePort     = 4001
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes snapshots to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client  greptimeClient
	table   string
	timeout time.Duration
	log     *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint (host or host:port). Empty database
// and table names fall back to the defaults.
func NewGreptimeDBWriter(endpoint, database, tableName string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if database == "" {
		database = DefaultGreptimeDatabase
	}
	if tableName == "" {
		tableName = DefaultGreptimeTable
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	log.Info("greptime writer ready", "host", host, "port", port, "database", database, "table", tableName)
	return &GreptimeDBWriter{client: client, table: tableName, timeout: 5 * time.Second, log: log}, nil
}

func (w *GreptimeDBWriter) Name() string { return "greptime" }

// Write inserts a single snapshot.
func (w *GreptimeDBWriter) Write(st vehicle.State) error {
	return w.WriteBatch([]vehicle.State{st})
}

// WriteBatch inserts multiple snapshots in one request.
func (w *GreptimeDBWriter) WriteBatch(rows []vehicle.State) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.newTable()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := tbl.AddRow(
			r.ID,
			r.RouteID,
			r.Location.Latitude,
			r.Location.Longitude,
			int64(r.Occupancy),
			r.Band().String(),
			r.UpdatedAt(),
		); err != nil {
			return fmt.Errorf("add row %s: %w", r.ID, err)
		}
	}

	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	resp, err := w.client.Write(ctx, tbl)
	if err != nil {
		return err
	}
	if w.log != nil {
		w.log.Debug("greptime write", "rows", len(rows), "affected", resp.GetAffectedRows().GetValue())
	}
	return nil
}

func (w *GreptimeDBWriter) newTable() (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	steps := []error{
		tbl.AddTagColumn("vehicle_id", types.STRING),
		tbl.AddTagColumn("route_id", types.STRING),
		tbl.AddFieldColumn("lat", types.FLOAT64),
		tbl.AddFieldColumn("lon", types.FLOAT64),
		tbl.AddFieldColumn("occupancy", types.INT64),
		tbl.AddFieldColumn("occupancy_band", types.STRING),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	}
	for _, err := range steps {
		if err != nil {
			return nil, fmt.Errorf("greptime schema: %w", err)
		}
	}
	return tbl, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("greptime endpoint is empty")
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// no port given
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("greptime endpoint %q: invalid port: %w", endpoint, err)
	}
	return host, port, nil
}
