package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/errors"
	"github.com/Iron-Ham/wheatley/internal/event"
)

var epoch = time.Unix(0, 0)

func send(m Model, events ...event.Event) Model {
	for _, e := range events {
		next, _ := m.Update(eventMsg{event: e})
		m = next.(Model)
	}
	return m
}

func TestNewModel_DefaultsMaxRows(t *testing.T) {
	m := NewModel(123, 0)
	if m.maxRows != DefaultMaxRows {
		t.Errorf("maxRows = %d, want %d", m.maxRows, DefaultMaxRows)
	}
	if m.state != "standing" {
		t.Errorf("state = %q, want %q", m.state, "standing")
	}
}

func TestModel_TracksTower(t *testing.T) {
	m := send(NewModel(1, 10),
		event.NewGlobalStateEvent(make([]bell.Stroke, 8), epoch),
		event.NewUserAssignedEvent(bell.FromNumber(1), "alice", epoch),
		event.NewUserAssignedEvent(bell.FromNumber(7), "bob", epoch),
		event.NewCallEvent("Look to", epoch),
		event.NewRingingChangedEvent("rounds", epoch),
		event.NewDelayChangedEvent(120*time.Millisecond, epoch),
	)

	if m.stage != 8 {
		t.Errorf("stage = %d, want 8", m.stage)
	}
	if len(m.users) != 2 {
		t.Errorf("users = %v, want 2 ringers", m.users)
	}
	if m.lastCall != "Look to" {
		t.Errorf("lastCall = %q, want %q", m.lastCall, "Look to")
	}
	if m.state != "rounds" {
		t.Errorf("state = %q, want %q", m.state, "rounds")
	}
	if m.delay != 120*time.Millisecond {
		t.Errorf("delay = %v, want 120ms", m.delay)
	}

	// Shrinking the tower drops ringers on bells that no longer exist.
	m = send(m, event.NewSizeChangedEvent(6, epoch))
	if _, ok := m.users[bell.FromNumber(7)]; ok {
		t.Error("ringer on bell 7 should be dropped after resize to 6")
	}

	m = send(m,
		event.NewUserLeftEvent("alice", epoch),
		event.NewUserAssignedEvent(bell.FromNumber(2), "carol", epoch),
		event.NewUserAssignedEvent(bell.FromNumber(2), "", epoch),
	)
	if len(m.users) != 0 {
		t.Errorf("users = %v, want none", m.users)
	}
}

func TestModel_KeepsRecentRows(t *testing.T) {
	m := NewModel(1, 3)
	for i := range 5 {
		m = send(m, event.NewRowStartedEvent(i, bell.Rounds(4), bell.StrokeForRow(i), true, epoch))
	}

	if len(m.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(m.rows))
	}
	if m.rows[0].number != 2 || m.rows[2].number != 4 {
		t.Errorf("rows kept = %d..%d, want 2..4", m.rows[0].number, m.rows[2].number)
	}
}

func TestModel_BellStruckAdvancesCurrentRow(t *testing.T) {
	m := send(NewModel(1, 5),
		event.NewRowStartedEvent(0, bell.Rounds(4), bell.Handstroke, true, epoch),
		event.NewBellStruckEvent(bell.FromNumber(1), 0, 0, bell.Handstroke, false, epoch),
		event.NewBellStruckEvent(bell.FromNumber(2), 0, 1, bell.Handstroke, true, epoch),
		// A strike for a row that is not current is ignored.
		event.NewBellStruckEvent(bell.FromNumber(3), 7, 2, bell.Handstroke, false, epoch),
	)

	if got := m.rows[0].struck; got != 2 {
		t.Errorf("struck = %d, want 2", got)
	}
}

func TestModel_Disconnected(t *testing.T) {
	m := send(NewModel(1, 5), event.NewDisconnectedEvent(nil, epoch))
	if !errors.Is(m.err, errors.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", m.err)
	}

	view := m.View()
	if !strings.Contains(view, "not connected") {
		t.Errorf("View() should show the disconnection:\n%s", view)
	}
}

func TestModel_View(t *testing.T) {
	m := send(NewModel(987654321, 5),
		event.NewUserAssignedEvent(bell.FromNumber(3), "dora", epoch),
		event.NewRingingChangedEvent("changes", epoch),
		event.NewRowStartedEvent(4, bell.Row{bell.FromNumber(2), bell.FromNumber(1), bell.FromNumber(4), bell.FromNumber(3)}, bell.Handstroke, false, epoch),
	)

	view := m.View()
	for _, want := range []string{"tower 987654321", "changes", "4H", "dora", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_ViewBeforeLookTo(t *testing.T) {
	view := NewModel(1, 5).View()
	if !strings.Contains(view, "Look to") {
		t.Errorf("View() should prompt for Look to:\n%s", view)
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		_, cmd := NewModel(1, 5).Update(key)
		if cmd == nil {
			t.Errorf("key %q should quit", key.String())
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q should return tea.Quit", key.String())
		}
	}

	_, cmd := NewModel(1, 5).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if cmd != nil {
		t.Error("other keys should not quit")
	}
}

func TestFormatDelay(t *testing.T) {
	tests := []struct {
		delay time.Duration
		want  string
	}{
		{0, "0ms"},
		{250 * time.Millisecond, "+250ms"},
		{-40 * time.Millisecond, "-40ms"},
	}
	for _, tt := range tests {
		if got := formatDelay(tt.delay); got != tt.want {
			t.Errorf("formatDelay(%v) = %q, want %q", tt.delay, got, tt.want)
		}
	}
}
