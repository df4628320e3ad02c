package stream

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"metro-sim/internal/board"
	"metro-sim/internal/broker"
	"metro-sim/internal/vehicle"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	return f
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", h.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewClientReceivesCurrentState(t *testing.T) {
	bd := board.New()
	bd.SetStatus(broker.Connected)
	bd.Update(vehicle.State{ID: "metro_L1_1", RouteID: "L1", Occupancy: 33, LastUpdate: 5})

	h := NewHub(bd, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dial(t, srv)

	f := readFrame(t, conn)
	if f.Type != TypeConnectionStatus || string(f.Data) != `"connected"` {
		t.Fatalf("first frame %s %s", f.Type, f.Data)
	}
	f = readFrame(t, conn)
	if f.Type != TypeVehicleUpdate {
		t.Fatalf("second frame type %s", f.Type)
	}
	var st vehicle.State
	if err := json.Unmarshal(f.Data, &st); err != nil || st.ID != "metro_L1_1" || st.Occupancy != 33 {
		t.Fatalf("vehicle frame %s (%v)", f.Data, err)
	}
}

func TestBroadcastEnvelopes(t *testing.T) {
	h := NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(h)
	defer srv.Close()
	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, h, 2)

	h.Broadcast(Envelope{Type: TypeConnectionStatus, Data: broker.Connecting})
	h.Broadcast(Envelope{Type: TypeError, Data: errorData{Message: errors.New("boom").Error()}})

	for _, conn := range []*websocket.Conn{a, b} {
		if f := readFrame(t, conn); f.Type != TypeConnectionStatus || string(f.Data) != `"connecting"` {
			t.Fatalf("status frame %s %s", f.Type, f.Data)
		}
		if f := readFrame(t, conn); f.Type != TypeError || !strings.Contains(string(f.Data), "boom") {
			t.Fatalf("error frame %s %s", f.Type, f.Data)
		}
	}

	a.Close()
	waitClients(t, h, 1)
	h.Close()
	if h.Clients() != 0 {
		t.Fatalf("clients after Close=%d", h.Clients())
	}
}
