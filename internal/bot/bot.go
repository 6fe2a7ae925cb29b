// Package bot rings the bot's bells in a tower.
//
// A Bot listens to the calls and strikes published by a tower, decides which
// bell comes next and hands every place to the rhythm, which blocks until
// that bell is due or its human ringer has struck it.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/event"
	"github.com/Iron-Ham/wheatley/internal/logging"
	"github.com/Iron-Ham/wheatley/internal/rowgen"
	"github.com/Iron-Ham/wheatley/internal/tower"
)

// Tower is the part of a tower session the bot rings through.
type Tower interface {
	NumberOfBells() int
	UserControlled(b bell.Bell) bool
	RingBell(b bell.Bell, stroke bell.Stroke) error
}

// Rhythm decides when each place is struck. *rhythm.UserSync implements it.
type Rhythm interface {
	RegisterExpectation(b bell.Bell, row, place int, stroke bell.Stroke)
	RecordStrike(b bell.Bell, stroke bell.Stroke, raw time.Time)
	WaitUntilDueOrStruck(ctx context.Context, due time.Time, b bell.Bell, row, place int, userControlled bool, stroke bell.Stroke) error
	WaitForStrike(ctx context.Context, expected time.Time, b bell.Bell, row, place int, stroke bell.Stroke) error
	InitialiseLine(stage int, userControlsTreble bool, start time.Time, userBells int)
	DueTime(row, place int) (time.Time, bool)
	Delay() time.Duration
	ForgetBell(b bell.Bell)
}

// Ringing states published in RingingChangedEvent.
const (
	StateStanding = "standing"
	StateRounds   = "rounds"
	StateChanges  = "changes"
)

// DefaultStartDelay is the gap between "Look to" and the first stroke.
const DefaultStartDelay = 3 * time.Second

// Status is a snapshot of where the bot is in the ringing.
type Status struct {
	State string
	Stage int
	Row   int
	Place int
	Delay time.Duration
}

// Bot rings the bells no human is ringing.
type Bot struct {
	tower     Tower
	rhythm    Rhythm
	generator GeneratorFunc
	bus       *event.Bus
	clock     clock.Clock
	logger    *logging.Logger

	upDownIn   bool
	startDelay time.Duration

	mu                sync.Mutex
	ringing           bool
	rounds            bool
	shouldStartMethod bool
	shouldStartRounds bool
	shouldStand       bool
	stage             int
	rowNumber         int
	place             int
	row               bell.Row
	gen               rowgen.Generator
	line              int // bumped by every Look To
	cancelWait        context.CancelFunc
	lastDelay         time.Duration

	wake chan struct{}
	subs []string
}

// Option configures a Bot.
type Option func(*Bot)

// WithBus sets the bus the bot listens on and publishes to. It should be the
// tower's bus.
func WithBus(b *event.Bus) Option {
	return func(bt *Bot) { bt.bus = b }
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(bt *Bot) { bt.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(bt *Bot) { bt.logger = l }
}

// WithUpDownIn makes the bot go into changes by itself after two rows of
// rounds.
func WithUpDownIn(v bool) Option {
	return func(bt *Bot) { bt.upDownIn = v }
}

// WithStartDelay sets the gap between "Look to" and the first stroke.
func WithStartDelay(d time.Duration) Option {
	return func(bt *Bot) { bt.startDelay = d }
}

// New creates a Bot. It does nothing until Run is called.
func New(t Tower, r Rhythm, gen GeneratorFunc, opts ...Option) *Bot {
	b := &Bot{
		tower:      t,
		rhythm:     r,
		generator:  gen,
		clock:      clock.New(),
		logger:     logging.NopLogger(),
		upDownIn:   true,
		startDelay: DefaultStartDelay,
		rounds:     true,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.bus == nil {
		b.bus = event.NewBus(b.logger)
	}
	b.logger = b.logger.WithComponent("bot")
	return b
}

// Run rings until ctx is cancelled. Between a "Stand next" and the following
// "Look to" it sits idle.
func (b *Bot) Run(ctx context.Context) error {
	b.subscribe()
	defer b.unsubscribe()

	for ctx.Err() == nil {
		if b.isRinging() {
			if err := b.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-b.wake:
		}
	}
	return nil
}

func (b *Bot) subscribe() {
	b.subs = []string{
		b.bus.Subscribe(event.TypeCall, func(e event.Event) {
			if c, ok := e.(event.CallEvent); ok {
				b.OnCall(c.Call)
			}
		}),
		b.bus.Subscribe(event.TypeBellRung, func(e event.Event) {
			if r, ok := e.(event.BellRungEvent); ok {
				b.OnBellRung(r.Bell, r.Stroke, r.Timestamp())
			}
		}),
		b.bus.Subscribe(event.TypeUserAssigned, func(event.Event) { b.OnRingersChanged() }),
		b.bus.Subscribe(event.TypeUserLeft, func(event.Event) { b.OnRingersChanged() }),
		b.bus.Subscribe(event.TypeSizeChanged, func(e event.Event) {
			if s, ok := e.(event.SizeChangedEvent); ok {
				b.onSizeChanged(s.Stage)
			}
		}),
	}
}

func (b *Bot) unsubscribe() {
	for _, id := range b.subs {
		b.bus.Unsubscribe(id)
	}
	b.subs = nil
}

// OnCall reacts to a call made in the tower. Unknown calls are ignored.
func (b *Bot) OnCall(call string) {
	switch call {
	case tower.CallLookTo:
		b.lookTo()
	case tower.CallGo:
		b.mu.Lock()
		if b.rounds {
			b.shouldStartMethod = true
		}
		b.mu.Unlock()
	case tower.CallBob:
		b.mu.Lock()
		if b.gen != nil {
			b.gen.SetBob()
		}
		b.mu.Unlock()
	case tower.CallSingle:
		b.mu.Lock()
		if b.gen != nil {
			b.gen.SetSingle()
		}
		b.mu.Unlock()
	case tower.CallThatsAll:
		b.mu.Lock()
		b.shouldStartRounds = true
		b.mu.Unlock()
	case tower.CallStand:
		b.mu.Lock()
		b.shouldStand = true
		b.mu.Unlock()
	default:
		b.logger.Debug("ignoring call", "call", call)
	}
}

// OnBellRung passes strikes on human-rung bells to the rhythm. The bot's own
// strikes are already accounted for.
func (b *Bot) OnBellRung(bl bell.Bell, stroke bell.Stroke, at time.Time) {
	if !b.tower.UserControlled(bl) {
		return
	}
	b.rhythm.RecordStrike(bl, stroke, at)
}

// OnRingersChanged makes the rhythm forget the strikes of every bell the bot
// now rings itself, so a departed ringer's last strike is not mistaken for
// the next one.
func (b *Bot) OnRingersChanged() {
	for i := range b.tower.NumberOfBells() {
		bl := bell.FromIndex(i)
		if !b.tower.UserControlled(bl) {
			b.rhythm.ForgetBell(bl)
		}
	}
}

func (b *Bot) lookTo() {
	stage := b.tower.NumberOfBells()
	if stage < 1 {
		b.logger.Warn("look to called before the tower size is known")
		return
	}

	userBells := 0
	for i := range stage {
		if b.tower.UserControlled(bell.FromIndex(i)) {
			userBells++
		}
	}
	now := b.clock.Now()
	b.rhythm.InitialiseLine(stage, b.tower.UserControlled(bell.FromIndex(0)), now.Add(b.startDelay), userBells)

	b.mu.Lock()
	if b.cancelWait != nil {
		b.cancelWait()
		b.cancelWait = nil
	}
	b.line++
	b.shouldStand = false
	b.shouldStartMethod = false
	b.shouldStartRounds = false
	b.ringing = true
	b.rounds = true
	b.stage = stage
	b.rowNumber = 0
	b.place = 0
	b.row = bell.Rounds(stage)
	b.expectRow()
	row := b.row
	b.mu.Unlock()

	b.logger.Info("look to", "stage", stage, "user_bells", userBells)
	b.bus.Publish(event.NewRingingChangedEvent(StateRounds, now))
	b.bus.Publish(event.NewRowStartedEvent(0, row, bell.Handstroke, true, now))

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bot) onSizeChanged(stage int) {
	b.mu.Lock()
	wasRinging := b.ringing && stage != b.stage
	if wasRinging {
		b.ringing = false
		if b.cancelWait != nil {
			b.cancelWait()
			b.cancelWait = nil
		}
	}
	b.mu.Unlock()

	if wasRinging {
		b.logger.Warn("tower size changed while ringing, standing", "stage", stage)
		b.bus.Publish(event.NewRingingChangedEvent(StateStanding, b.clock.Now()))
	}
}

// expectRow registers the current row's human-rung bells with the rhythm.
// Callers hold mu.
func (b *Bot) expectRow() {
	stroke := bell.StrokeForRow(b.rowNumber)
	for place, bl := range b.row {
		if b.tower.UserControlled(bl) {
			b.rhythm.RegisterExpectation(bl, b.rowNumber, place, stroke)
		}
	}
}

func (b *Bot) isRinging() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ringing
}

// Tick strikes the next place: it waits until the bell is due, rings it if no
// human has it and moves on. It returns ctx's error if ctx is cancelled
// mid-wait; a "Look to" during the wait abandons the place without error.
func (b *Bot) Tick(ctx context.Context) error {
	b.mu.Lock()
	if !b.ringing {
		b.mu.Unlock()
		return nil
	}
	line := b.line
	row, place := b.rowNumber, b.place
	bl := b.row[place]
	stroke := bell.StrokeForRow(row)
	waitCtx, cancel := context.WithCancel(ctx)
	b.cancelWait = cancel
	b.mu.Unlock()
	defer cancel()

	userControlled := b.tower.UserControlled(bl)
	if err := b.waitFor(waitCtx, bl, row, place, userControlled, stroke); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Debug("wait interrupted", "bell", bl.String(), "row", row, "place", place)
		return nil
	}
	if userControlled && !b.tower.UserControlled(bl) {
		b.logger.Info("ringer left, taking over the bell", "bell", bl.String(), "row", row, "place", place)
		userControlled = false
	}

	if !userControlled {
		if err := b.tower.RingBell(bl, stroke); err != nil {
			b.logger.Warn("failed to ring bell", "bell", bl.String(), "stroke", stroke.String(), "error", err)
		}
	}

	now := b.clock.Now()
	b.bus.Publish(event.NewBellStruckEvent(bl, row, place, stroke, userControlled, now))
	if delay := b.rhythm.Delay(); b.swapDelay(delay) {
		b.bus.Publish(event.NewDelayChangedEvent(delay, now))
	}

	b.mu.Lock()
	if b.line != line || !b.ringing {
		b.mu.Unlock()
		return nil
	}
	b.cancelWait = nil
	published := b.advance()
	b.mu.Unlock()

	for _, e := range published {
		b.bus.Publish(e)
	}
	return nil
}

// waitFor picks how to wait for a place. The bot's own bells wait for the
// predicted instant. Human bells wait for their ringer, and the delay follows
// how late the ringer is against the prediction. Before a human treble has
// pulled off there is no prediction, so the first strike is simply awaited.
func (b *Bot) waitFor(ctx context.Context, bl bell.Bell, row, place int, userControlled bool, stroke bell.Stroke) error {
	due, ok := b.rhythm.DueTime(row, place)
	switch {
	case !ok && userControlled:
		return b.rhythm.WaitForStrike(ctx, time.Time{}, bl, row, place, stroke)
	case !ok:
		b.logger.Warn("no prediction for bot bell, ringing now", "bell", bl.String(), "row", row, "place", place)
		return nil
	case userControlled:
		return b.rhythm.WaitForStrike(ctx, due.Add(b.rhythm.Delay()), bl, row, place, stroke)
	default:
		return b.rhythm.WaitUntilDueOrStruck(ctx, due, bl, row, place, false, stroke)
	}
}

func (b *Bot) swapDelay(delay time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if delay == b.lastDelay {
		return false
	}
	b.lastDelay = delay
	return true
}

// advance moves to the next place. At the end of a row it applies any
// pending change of state, which only ever happens at a handstroke, then
// lines up the next row. Callers hold mu; the events are returned for
// publishing once it is released.
func (b *Bot) advance() []event.Event {
	b.place++
	if b.place < len(b.row) {
		return nil
	}
	b.rowNumber++
	b.place = 0

	if b.rounds && b.rowNumber == 2 && b.upDownIn {
		b.shouldStartMethod = true
	}

	now := b.clock.Now()
	var events []event.Event

	if b.rowNumber%2 == 0 {
		if b.shouldStand {
			b.shouldStand = false
			b.ringing = false
			b.logger.Info("standing")
			return append(events, event.NewRingingChangedEvent(StateStanding, now))
		}

		if b.shouldStartMethod && b.rounds {
			b.shouldStartMethod = false
			if b.startMethod() {
				b.rounds = false
				events = append(events, event.NewRingingChangedEvent(StateChanges, now))
			}
		}

		if b.shouldStartRounds && !b.rounds {
			b.shouldStartRounds = false
			b.rounds = true
			b.logger.Info("going into rounds")
			events = append(events, event.NewRingingChangedEvent(StateRounds, now))
		}
	}

	if b.rounds {
		b.row = bell.Rounds(b.stage)
	} else {
		b.row = b.gen.NextRow(bell.StrokeForRow(b.rowNumber).IsHand())
	}
	b.expectRow()

	return append(events, event.NewRowStartedEvent(b.rowNumber, b.row, bell.StrokeForRow(b.rowNumber), b.rounds, now))
}

// startMethod readies a generator for the tower's stage. On failure the bot
// carries on ringing rounds.
func (b *Bot) startMethod() bool {
	gen, err := b.generator(b.stage)
	if err != nil {
		b.logger.Error("cannot start method, staying in rounds", "stage", b.stage, "error", err)
		return false
	}
	b.gen = gen
	b.logger.Info("going into changes", "stage", b.stage)
	return true
}

// Status returns where the bot is in the ringing.
func (b *Bot) Status() Status {
	b.mu.Lock()
	s := Status{
		State: StateStanding,
		Stage: b.stage,
		Row:   b.rowNumber,
		Place: b.place,
	}
	if b.ringing {
		s.State = StateChanges
		if b.rounds {
			s.State = StateRounds
		}
	}
	b.mu.Unlock()
	s.Delay = b.rhythm.Delay()
	return s
}
