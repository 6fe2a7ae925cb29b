package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/errors"
	"github.com/Iron-Ham/wheatley/internal/event"
	"github.com/Iron-Ham/wheatley/internal/tui/styles"
)

// DefaultMaxRows is how many rows the monitor shows when none is configured.
const DefaultMaxRows = 12

// eventMsg carries a bus event into the bubbletea loop.
type eventMsg struct {
	event event.Event
}

// rowLine is one row as shown on screen.
type rowLine struct {
	number int
	row    bell.Row
	stroke bell.Stroke
	rounds bool
	struck int // places struck so far
}

// Model is the monitor's state. It only ever changes in response to events.
type Model struct {
	towerID  int
	maxRows  int
	stage    int
	state    string
	delay    time.Duration
	lastCall string
	users    map[bell.Bell]string
	rows     []rowLine
	err      error

	width  int
	height int
}

// NewModel creates the monitor for a tower.
func NewModel(towerID, maxRows int) Model {
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	return Model{
		towerID: towerID,
		maxRows: maxRows,
		state:   "standing",
		users:   make(map[bell.Bell]string),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m = m.apply(msg.event)
		return m, nil
	}
	return m, nil
}

func (m Model) apply(e event.Event) Model {
	switch e := e.(type) {
	case event.GlobalStateEvent:
		m.stage = len(e.States)
	case event.SizeChangedEvent:
		m.stage = e.Stage
		for b := range m.users {
			if b.Index() >= e.Stage {
				delete(m.users, b)
			}
		}
	case event.UserAssignedEvent:
		if e.User == "" {
			delete(m.users, e.Bell)
		} else {
			m.users[e.Bell] = e.User
		}
	case event.UserLeftEvent:
		for b, u := range m.users {
			if u == e.User {
				delete(m.users, b)
			}
		}
	case event.CallEvent:
		m.lastCall = e.Call
	case event.RingingChangedEvent:
		m.state = e.State
	case event.DelayChangedEvent:
		m.delay = e.Delay
	case event.RowStartedEvent:
		m.rows = append(m.rows, rowLine{number: e.Number, row: e.Row, stroke: e.Stroke, rounds: e.Rounds})
		if len(m.rows) > m.maxRows {
			m.rows = m.rows[len(m.rows)-m.maxRows:]
		}
	case event.BellStruckEvent:
		if n := len(m.rows); n > 0 && m.rows[n-1].number == e.Row {
			m.rows[n-1].struck = e.Place + 1
		}
	case event.DisconnectedEvent:
		m.err = e.Err
		if m.err == nil {
			m.err = errors.ErrNotConnected
		}
	}
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styles.Header.Render(fmt.Sprintf("wheatley · tower %d", m.towerID)))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(styles.RowsBox.Render(m.renderRows()))
	b.WriteString("\n")
	if ringers := m.renderRingers(); ringers != "" {
		b.WriteString(ringers)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styles.ErrorMsg.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(styles.HelpBar.Render(styles.HelpKey.Render("q") + " quit"))
	return b.String()
}

func (m Model) renderStatus() string {
	state := lipgloss.NewStyle().Foreground(styles.StateColor(m.state)).
		Render(styles.StateIcon(m.state) + " " + m.state)
	parts := []string{
		state,
		fmt.Sprintf("%d bells", m.stage),
		"delay " + formatDelay(m.delay),
	}
	if m.lastCall != "" {
		parts = append(parts, fmt.Sprintf("last call %q", m.lastCall))
	}
	return styles.StatusBar.Render(strings.Join(parts, "  │  "))
}

func (m Model) renderRows() string {
	if len(m.rows) == 0 {
		return styles.Muted.Render("waiting for \"Look to\"")
	}
	lines := make([]string, 0, len(m.rows))
	for i, r := range m.rows {
		current := i == len(m.rows)-1
		var sb strings.Builder
		sb.WriteString(styles.RowNumber.Render(fmt.Sprintf("%d%s", r.number, r.stroke.Short())))
		for place, bl := range r.row {
			style := styles.BotBell
			switch {
			case current && place >= r.struck:
				style = styles.PendingBell
			case m.users[bl] != "":
				style = styles.UserBell
			}
			sb.WriteString(style.Render(bl.String()))
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRingers() string {
	if len(m.users) == 0 {
		return ""
	}
	bells := make([]bell.Bell, 0, len(m.users))
	for b := range m.users {
		bells = append(bells, b)
	}
	sort.Slice(bells, func(i, j int) bool { return bells[i].Index() < bells[j].Index() })

	parts := make([]string, len(bells))
	for i, b := range bells {
		parts[i] = styles.UserBell.Render(b.String()) + " " + m.users[b]
	}
	return styles.Muted.Render("ringers: ") + strings.Join(parts, ", ")
}

func formatDelay(d time.Duration) string {
	ms := d.Milliseconds()
	if ms > 0 {
		return fmt.Sprintf("+%dms", ms)
	}
	return fmt.Sprintf("%dms", ms)
}
