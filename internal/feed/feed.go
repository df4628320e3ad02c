// Package feed exports the board as a GTFS-Realtime vehicle positions feed.
package feed

import (
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"metro-sim/internal/board"
	"metro-sim/internal/vehicle"
)

const gtfsRealtimeVersion = "2.0"

// OccupancyStatus maps an occupancy band onto the GTFS-RT enum.
func OccupancyStatus(b vehicle.OccupancyBand) gtfs.VehiclePosition_OccupancyStatus {
	switch b {
	case vehicle.OccupancyLow:
		return gtfs.VehiclePosition_MANY_SEATS_AVAILABLE
	case vehicle.OccupancyMedium:
		return gtfs.VehiclePosition_FEW_SEATS_AVAILABLE
	case vehicle.OccupancyHigh:
		return gtfs.VehiclePosition_STANDING_ROOM_ONLY
	default:
		return gtfs.VehiclePosition_CRUSHED_STANDING_ROOM_ONLY
	}
}

// Build returns a FULL_DATASET feed with one VehiclePosition per entry.
func Build(entries []board.Entry, now time.Time) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	for _, e := range entries {
		msg.Entity = append(msg.Entity, entity(e))
	}
	return msg
}

func entity(e board.Entry) *gtfs.FeedEntity {
	pos := &gtfs.Position{
		Latitude:  proto.Float32(float32(e.Location.Latitude)),
		Longitude: proto.Float32(float32(e.Location.Longitude)),
	}
	if bearing, ok := e.Bearing(); ok {
		pos.Bearing = proto.Float32(float32(bearing))
	}
	return &gtfs.FeedEntity{
		Id: proto.String(e.ID),
		Vehicle: &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				RouteId: proto.String(e.RouteID),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(e.ID),
				Label: proto.String(e.Title()),
			},
			Position:            pos,
			Timestamp:           proto.Uint64(uint64(e.UpdatedAt().Unix())),
			OccupancyStatus:     OccupancyStatus(e.Band()).Enum(),
			OccupancyPercentage: proto.Uint32(uint32(e.Occupancy)),
		},
	}
}

// Handler serves the current board as GTFS-RT. The default encoding is
// binary protobuf; ?format=json returns protojson for debugging.
func Handler(bd *board.Board, now func() time.Time) http.Handler {
	if now == nil {
		now = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := Build(bd.Vehicles(), now())
		if r.URL.Query().Get("format") == "json" {
			data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
			return
		}
		data, err := proto.Marshal(msg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(data)
	})
}
