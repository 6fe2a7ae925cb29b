// Package tui is the live terminal monitor shown while the bot rings.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/wheatley/internal/event"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	bus     *event.Bus
}

// New creates a monitor fed by bus.
func New(bus *event.Bus, towerID, maxRows int) *App {
	return &App{
		model: NewModel(towerID, maxRows),
		bus:   bus,
	}
}

// Run shows the monitor until the user quits or ctx is cancelled. Quitting
// returns nil; the caller decides whether that stops the bot.
func (a *App) Run(ctx context.Context) error {
	a.program = tea.NewProgram(a.model, tea.WithAltScreen())

	id := a.bus.SubscribeAll(func(e event.Event) {
		a.program.Send(eventMsg{event: e})
	})
	defer a.bus.Unsubscribe(id)

	stop := context.AfterFunc(ctx, func() {
		a.program.Send(tea.Quit())
	})
	defer stop()

	_, err := a.program.Run()
	return err
}
