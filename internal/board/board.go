// Package board keeps the last known state of the simulated vehicles as seen
// by a consumer of the broker.
package board

import (
	"sort"
	"sync"
	"time"

	"metro-sim/internal/broker"
	"metro-sim/internal/vehicle"
)

// Entry is the board's view of one vehicle.
type Entry struct {
	vehicle.State
	// Previous is the location of the vehicle before the latest update,
	// nil for a vehicle seen once.
	Previous *vehicle.GeoPoint `json:"previous,omitempty"`
	Selected bool              `json:"selected"`
}

// Bearing reports the heading from Previous to the current location.
func (e Entry) Bearing() (float64, bool) {
	if e.Previous == nil || *e.Previous == e.Location {
		return 0, false
	}
	return vehicle.Bearing(*e.Previous, e.Location), true
}

// Board is safe for concurrent use. Updates arrive on the broker's delivery
// goroutine while HTTP handlers and the TUI read.
type Board struct {
	mu        sync.RWMutex
	vehicles  map[string]Entry
	selected  string
	status    broker.Status
	lastErr   error
	lastErrAt time.Time
	updates   uint64
	now       func() time.Time
}

// New returns an empty board.
func New() *Board {
	return &Board{vehicles: make(map[string]Entry), now: time.Now}
}

// Attach subscribes the board to all three event streams of b.
func (bd *Board) Attach(b *broker.Broker) []*broker.Subscription {
	return []*broker.Subscription{
		b.OnVehicleUpdate(bd.Update),
		b.OnConnectionStatus(bd.SetStatus),
		b.OnError(bd.SetError),
	}
}

// Update replaces every tracked vehicle with st. Only one vehicle is live at
// a time; the previous coordinate is kept when the id matches.
func (bd *Board) Update(st vehicle.State) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	e := Entry{State: st}
	if old, ok := bd.vehicles[st.ID]; ok {
		prev := old.Location
		e.Previous = &prev
	}
	clear(bd.vehicles)
	bd.vehicles[st.ID] = e
	bd.updates++
}

// SetStatus records the broker's connection status.
func (bd *Board) SetStatus(s broker.Status) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	bd.status = s
}

// SetError records the most recent error.
func (bd *Board) SetError(err error) {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	bd.lastErr = err
	bd.lastErrAt = bd.now()
}

// Select marks id as the selected vehicle. It reports false if the vehicle
// is not on the board.
func (bd *Board) Select(id string) bool {
	bd.mu.Lock()
	defer bd.mu.Unlock()
	if _, ok := bd.vehicles[id]; !ok {
		return false
	}
	bd.selected = id
	return true
}

// ClearSelection drops the current selection.
func (bd *Board) ClearSelection() {
	bd.mu.Lock()
	bd.selected = ""
	bd.mu.Unlock()
}

// Selected returns the selected vehicle if it is still on the board.
func (bd *Board) Selected() (Entry, bool) {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	e, ok := bd.vehicles[bd.selected]
	if !ok {
		return Entry{}, false
	}
	e.Selected = true
	return e, true
}

// Get returns the entry for id.
func (bd *Board) Get(id string) (Entry, bool) {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	e, ok := bd.vehicles[id]
	e.Selected = ok && id == bd.selected
	return e, ok
}

// Vehicles lists the tracked vehicles sorted by id.
func (bd *Board) Vehicles() []Entry {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	out := make([]Entry, 0, len(bd.vehicles))
	for id, e := range bd.vehicles {
		e.Selected = id == bd.selected
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Latest returns the most recently updated vehicle.
func (bd *Board) Latest() (Entry, bool) {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	var latest Entry
	found := false
	for id, e := range bd.vehicles {
		if !found || e.LastUpdate > latest.LastUpdate {
			latest = e
			latest.Selected = id == bd.selected
			found = true
		}
	}
	return latest, found
}

// Snapshot is a point-in-time copy of the board.
type Snapshot struct {
	Status    broker.Status `json:"status"`
	Vehicles  []Entry       `json:"vehicles"`
	Selected  string        `json:"selected,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	ErrorAt   *time.Time    `json:"errorAt,omitempty"`
	Updates   uint64        `json:"updates"`
}

// Snapshot copies the board state.
func (bd *Board) Snapshot() Snapshot {
	vs := bd.Vehicles()
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	s := Snapshot{Status: bd.status, Vehicles: vs, Updates: bd.updates}
	if _, ok := bd.vehicles[bd.selected]; ok {
		s.Selected = bd.selected
	}
	if bd.lastErr != nil {
		s.LastError = bd.lastErr.Error()
		at := bd.lastErrAt
		s.ErrorAt = &at
	}
	return s
}

// Status returns the last recorded connection status.
func (bd *Board) Status() broker.Status {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	return bd.status
}

// LastError returns the most recent error, if any.
func (bd *Board) LastError() error {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	return bd.lastErr
}
