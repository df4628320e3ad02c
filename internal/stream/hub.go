// Package stream pushes broker events to WebSocket clients.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"metro-sim/internal/board"
	"metro-sim/internal/broker"
	"metro-sim/internal/vehicle"
)

// Event types carried in the envelope.
const (
	TypeVehicleUpdate    = "vehicleUpdate"
	TypeConnectionStatus = "connectionStatus"
	TypeError            = "error"
)

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

const writeWait = 5 * time.Second

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected clients and broadcasts envelopes to all of them.
type Hub struct {
	log      *slog.Logger
	board    *board.Board
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub. When bd is non-nil new clients first receive the
// current status and the latest vehicle from it.
func NewHub(bd *board.Board, log *slog.Logger) *Hub {
	return &Hub{
		log:   log.With("component", "stream"),
		board: bd,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the hub to all broker event streams.
func (h *Hub) Attach(b *broker.Broker) []*broker.Subscription {
	return []*broker.Subscription{
		b.OnVehicleUpdate(func(st vehicle.State) { h.Broadcast(Envelope{Type: TypeVehicleUpdate, Data: st}) }),
		b.OnConnectionStatus(func(s broker.Status) { h.Broadcast(Envelope{Type: TypeConnectionStatus, Data: s}) }),
		b.OnError(func(err error) { h.Broadcast(Envelope{Type: TypeError, Data: errorData{Message: err.Error()}}) }),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade error", "err", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}
	if err := h.greet(c); err != nil {
		h.log.Warn("ws greeting failed", "client", c.id, "err", err)
		conn.Close()
		return
	}
	h.add(c)
	h.log.Info("ws client connected", "client", c.id, "remote", r.RemoteAddr)
	go h.readPump(c)
}

func (h *Hub) greet(c *client) error {
	if h.board == nil {
		return nil
	}
	frames := []Envelope{{Type: TypeConnectionStatus, Data: h.board.Status()}}
	if e, ok := h.board.Latest(); ok {
		frames = append(frames, Envelope{Type: TypeVehicleUpdate, Data: e.State})
	}
	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if err := c.write(data); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast sends env to every client. Clients that fail are dropped.
func (h *Hub) Broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("ws marshal failed", "type", env.Type, "err", err)
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("dropping ws client", "client", c.id, "err", err)
			h.remove(c)
			c.conn.Close()
		}
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.conn.Close()
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.log.Info("ws client disconnected", "client", c.id)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
