package tui

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"metro-sim/internal/broker"
	"metro-sim/internal/vehicle"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

type fakeController struct {
	connects, disconnects atomic.Int32
}

func (f *fakeController) Connect()    { f.connects.Add(1) }
func (f *fakeController) Disconnect() { f.disconnects.Add(1) }

var testState = vehicle.State{
	ID:         "metro_L2_1",
	Location:   vehicle.GeoPoint{Latitude: 25.7, Longitude: -100.3},
	Occupancy:  91,
	RouteID:    "L2",
	LastUpdate: 1_700_000_000_000,
}

func TestTUIMessages(t *testing.T) {
	p := &fakeProgram{}
	tu := &TUI{program: p}

	tu.VehicleUpdate(testState)
	tu.ConnectionStatus(broker.Connected)
	tu.Error(errors.New("nats down"))

	if len(p.msgs) != 6 {
		t.Fatalf("got %d messages", len(p.msgs))
	}
	if vm, ok := p.msgs[0].(vehicleMsg); !ok || vm.ID != "metro_L2_1" {
		t.Fatalf("expected vehicleMsg, got %T", p.msgs[0])
	}
	if lm, ok := p.msgs[1].(logMsg); !ok || !strings.Contains(lm.line, "Train metro_L2_1") || !strings.Contains(lm.line, "Very High") {
		t.Fatalf("unexpected log line %#v", p.msgs[1])
	}
	if sm, ok := p.msgs[2].(statusMsg); !ok || sm.status != broker.Connected {
		t.Fatalf("expected statusMsg, got %#v", p.msgs[2])
	}
	if _, ok := p.msgs[4].(errorMsg); !ok {
		t.Fatalf("expected errorMsg, got %T", p.msgs[4])
	}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	mi, cmd := m.Update(msg)
	return mi.(model), cmd
}

func TestModelTracksVehicleAndHeading(t *testing.T) {
	m := newModel(nil, "Metro")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, vehicleMsg{testState})
	if rows := m.table.Rows(); len(rows) != 1 || rows[0][0] != "metro_L2_1" || rows[0][6] != "-" {
		t.Fatalf("rows after first tick: %v", m.table.Rows())
	}

	next := testState
	next.Location.Latitude += 0.01
	m, _ = update(t, m, vehicleMsg{next})
	if rows := m.table.Rows(); rows[0][6] != "0°" {
		t.Fatalf("expected northbound heading, got %q", rows[0][6])
	}

	other := testState
	other.ID = "metro_L3_1"
	m, _ = update(t, m, vehicleMsg{other})
	if rows := m.table.Rows(); len(rows) != 1 || rows[0][0] != "metro_L3_1" || rows[0][6] != "-" {
		t.Fatalf("new vehicle should replace the old one: %v", rows)
	}

	m, _ = update(t, m, statusMsg{status: broker.Connected})
	m, _ = update(t, m, errorMsg{err: errors.New("sink greptime: boom")})
	view := m.View()
	for _, want := range []string{"Metro", "connected", "Line L2", "last error: sink greptime: boom"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestConnectDisconnectKeys(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(ctrl, "Metro")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd == nil {
		t.Fatalf("expected command for connect")
	}
	cmd()
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	cmd()
	if ctrl.connects.Load() != 1 || ctrl.disconnects.Load() != 1 {
		t.Fatalf("connects=%d disconnects=%d", ctrl.connects.Load(), ctrl.disconnects.Load())
	}
}

func TestWrapToggle(t *testing.T) {
	m := newModel(nil, "Metro")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 30})
	m, _ = update(t, m, logMsg{line: "one two three four five six"})
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestHelpAndQuit(t *testing.T) {
	m := newModel(nil, "Metro")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if !strings.Contains(m.View(), "Key Bindings") {
		t.Fatalf("help not shown")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.help {
		t.Fatalf("help not dismissed")
	}
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg")
	}
}
