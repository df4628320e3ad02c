// Package tui renders a live terminal board of the simulated metro feed.
package tui

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"metro-sim/internal/broker"
	"metro-sim/internal/vehicle"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// Controller drives the connection lifecycle from key bindings.
type Controller interface {
	Connect()
	Disconnect()
}

type vehicleMsg struct{ vehicle.State }
type statusMsg struct{ status broker.Status }
type errorMsg struct{ err error }
type logMsg struct{ line string }

const maxLogLines = 1000

// TUI forwards broker events to a bubbletea program.
type TUI struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// New starts a bubbletea program on the alternate screen. When the user
// quits, the process receives an interrupt so the command shuts down.
func New(ctrl Controller, title string) *TUI {
	t := &TUI{done: make(chan struct{})}
	t.sendSignal.Store(true)
	p := tea.NewProgram(newModel(ctrl, title), tea.WithAltScreen())
	t.program = p
	go func() {
		_, _ = p.Run()
		close(t.done)
		if t.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return t
}

// Attach subscribes the TUI to all broker event streams.
func (t *TUI) Attach(b *broker.Broker) []*broker.Subscription {
	return []*broker.Subscription{
		b.OnVehicleUpdate(t.VehicleUpdate),
		b.OnConnectionStatus(t.ConnectionStatus),
		b.OnError(t.Error),
	}
}

func (t *TUI) VehicleUpdate(st vehicle.State) {
	line := fmt.Sprintf("[%s] %s %s lat=%.6f lon=%.6f occupancy=%d%% (%s)",
		st.UpdatedAt().Format(time.TimeOnly), st.Subtitle(), st.Title(),
		st.Location.Latitude, st.Location.Longitude, st.Occupancy, st.Band())
	t.program.Send(vehicleMsg{st})
	t.program.Send(logMsg{line: line})
}

func (t *TUI) ConnectionStatus(s broker.Status) {
	t.program.Send(statusMsg{status: s})
	t.program.Send(logMsg{line: fmt.Sprintf("[%s] connection %s", time.Now().Format(time.TimeOnly), s)})
}

func (t *TUI) Error(err error) {
	t.program.Send(errorMsg{err: err})
	t.program.Send(logMsg{line: fmt.Sprintf("[%s] ERROR %v", time.Now().Format(time.TimeOnly), err)})
}

// Done is closed once the program exits.
func (t *TUI) Done() <-chan struct{} { return t.done }

// Close shuts down the TUI program and waits for cleanup.
func (t *TUI) Close() error {
	t.sendSignal.Store(false)
	if t.program != nil {
		t.program.Send(tea.Quit())
	}
	if t.done != nil {
		<-t.done
	}
	return nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	statusStyle = map[broker.Status]lipgloss.Style{
		broker.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		broker.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		broker.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
	palette = map[vehicle.Color]lipgloss.Color{
		vehicle.ColorGreen:  lipgloss.Color("2"),
		vehicle.ColorYellow: lipgloss.Color("3"),
		vehicle.ColorOrange: lipgloss.Color("208"),
		vehicle.ColorRed:    lipgloss.Color("1"),
		vehicle.ColorBlue:   lipgloss.Color("4"),
	}
)

type model struct {
	ctrl       Controller
	title      string
	table      table.Model
	vp         viewport.Model
	logs       []string
	status     broker.Status
	last       vehicle.State
	haveLast   bool
	previous   *vehicle.GeoPoint
	lastErr    string
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
}

func newModel(ctrl Controller, title string) model {
	cols := []table.Column{
		{Title: "Vehicle", Width: 14},
		{Title: "Line", Width: 5},
		{Title: "Latitude", Width: 11},
		{Title: "Longitude", Width: 12},
		{Title: "Occupancy", Width: 10},
		{Title: "Band", Width: 10},
		{Title: "Heading", Width: 8},
		{Title: "Updated", Width: 9},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(2))
	return model{
		ctrl:       ctrl,
		title:      title,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			return m, m.lifecycle(true)
		case "d":
			return m, m.lifecycle(false)
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "?", "h":
			m.help = true
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	case vehicleMsg:
		if m.haveLast && m.last.ID == msg.ID {
			prev := m.last.Location
			m.previous = &prev
		} else {
			m.previous = nil
		}
		m.last = msg.State
		m.haveLast = true
		m.table.SetRows([]table.Row{m.row()})
	case statusMsg:
		m.status = msg.status
	case errorMsg:
		m.lastErr = msg.err.Error()
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	}
	return m, nil
}

func (m model) lifecycle(connect bool) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		if connect {
			ctrl.Connect()
		} else {
			ctrl.Disconnect()
		}
		return nil
	}
}

func (m model) row() table.Row {
	st := m.last
	heading := "-"
	if m.previous != nil && *m.previous != st.Location {
		heading = fmt.Sprintf("%.0f°", vehicle.Bearing(*m.previous, st.Location))
	}
	return table.Row{
		st.ID,
		st.RouteID,
		fmt.Sprintf("%.6f", st.Location.Latitude),
		fmt.Sprintf("%.6f", st.Location.Longitude),
		fmt.Sprintf("%d%%", st.Occupancy),
		st.Band().String(),
		heading,
		st.UpdatedAt().Format(time.TimeOnly),
	}
}

func (m *model) updateViewportHeight() {
	used := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.table.View()) + lipgloss.Height(m.renderBottom()) + 3
	h := m.height - used
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *model) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.width)
	return strings.Join([]string{
		m.renderHeader(),
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

func (m model) renderHeader() string {
	status := statusStyle[m.status].Render("● " + m.status.String())
	head := titleStyle.Render(m.title) + "  " + status
	if !m.haveLast {
		return head
	}
	st := m.last
	line := lipgloss.NewStyle().Foreground(palette[st.LineColor()]).Render(st.Subtitle())
	band := lipgloss.NewStyle().Foreground(palette[st.Band().Color()]).Render(st.Band().String())
	return head + "  " + line + "  " + st.Title() + "  occupancy " + band
}

func (m model) renderBottom() string {
	parts := []string{mutedStyle.Render("c connect · d disconnect · w wrap · s scroll · ? help · q quit")}
	if m.lastErr != "" {
		parts = append(parts, errorStyle.Render("last error: "+m.lastErr))
	}
	return strings.Join(parts, "\n")
}

func (m model) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" c  connect",
		" d  disconnect",
		" w  toggle wrap for the event log",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
