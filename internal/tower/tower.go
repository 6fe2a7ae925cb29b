// Package tower is the bot's connection to a Ringing Room tower.
//
// Ringing Room speaks Socket.IO. A Tower dials the websocket transport
// directly, keeps its own copy of the tower state (stage, each bell's
// stroke, who is ringing which bell) and publishes everything it hears on an
// event bus.
package tower

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/errors"
	"github.com/Iron-Ham/wheatley/internal/event"
	"github.com/Iron-Ham/wheatley/internal/logging"
)

// Calls a ringer can make in Ringing Room.
const (
	CallLookTo   = "Look to"
	CallGo       = "Go"
	CallBob      = "Bob"
	CallSingle   = "Single"
	CallThatsAll = "That's all"
	CallStand    = "Stand next"
)

// Tower is a live connection to one Ringing Room tower.
type Tower struct {
	id     int
	conn   *websocket.Conn
	bus    *event.Bus
	clock  clock.Clock
	logger *logging.Logger
	dialer *websocket.Dialer

	writeMu sync.Mutex

	mu     sync.RWMutex
	states []bell.Stroke // stroke each bell will ring next
	users  map[bell.Bell]string

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Tower.
type Option func(*Tower)

// WithBus sets the bus tower events are published on.
func WithBus(b *event.Bus) Option {
	return func(t *Tower) { t.bus = b }
}

// WithClock sets the clock used to timestamp strikes.
func WithClock(c clock.Clock) Option {
	return func(t *Tower) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tower) { t.logger = l }
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Tower) { t.dialer = d }
}

// Dial connects to the Socket.IO server at server, joins towerID and asks
// for the tower's state. The caller must then call Run to receive events.
func Dial(ctx context.Context, server string, towerID int, opts ...Option) (*Tower, error) {
	t := &Tower{
		id:     towerID,
		clock:  clock.New(),
		logger: logging.NopLogger(),
		dialer: websocket.DefaultDialer,
		users:  make(map[bell.Bell]string),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bus == nil {
		t.bus = event.NewBus(t.logger)
	}
	t.logger = t.logger.WithComponent("tower").WithTower(towerID)

	endpoint, err := socketURL(server)
	if err != nil {
		return nil, errors.NewTowerError("invalid server address", err).WithTowerID(towerID).WithRetryable(false)
	}

	conn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.NewTowerError("dialing socket server", err).WithTowerID(towerID)
	}
	t.conn = conn

	if err := t.handshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := t.emit(emitJoin, joinPayload{TowerID: towerID, AnonymousUser: true}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := t.emit(emitRequestGlobalState, towerPayload{TowerID: towerID}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	t.logger.Info("joined tower", "endpoint", endpoint)
	return t, nil
}

// handshake waits for the Engine.IO open packet, then connects to the
// default Socket.IO namespace.
func (t *Tower) handshake(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
		defer func() { _ = t.conn.SetReadDeadline(time.Time{}) }()
	}

	p, err := t.read()
	if err != nil {
		return errors.NewTowerError("waiting for open packet", err).WithTowerID(t.id)
	}
	if p.engine != engineOpen {
		return errors.NewTowerError("expected open packet", errors.ErrProtocol).WithTowerID(t.id).WithRetryable(false)
	}
	var open openPayload
	if err := json.Unmarshal(p.data, &open); err == nil {
		t.logger.Debug("engine.io open", "sid", open.SID, "ping_interval_ms", open.PingInterval)
	}

	if err := t.write([]byte{engineMessage, socketConnect}); err != nil {
		return err
	}

	for {
		p, err := t.read()
		if err != nil {
			return errors.NewTowerError("waiting for namespace connect", err).WithTowerID(t.id)
		}
		switch {
		case p.engine == enginePing:
			if err := t.write([]byte{enginePong}); err != nil {
				return err
			}
		case p.engine == engineMessage && p.socket == socketConnect:
			return nil
		case p.engine == engineMessage && p.socket == socketConnectError:
			return errors.NewTowerError("namespace connect refused: "+string(p.data), errors.ErrProtocol).
				WithTowerID(t.id).WithRetryable(false)
		}
	}
}

func (t *Tower) read() (packet, error) {
	_, frame, err := t.conn.ReadMessage()
	if err != nil {
		return packet{}, err
	}
	return decodePacket(frame)
}

func (t *Tower) write(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.closed:
		return errors.NewTowerError("write", errors.ErrNotConnected).WithTowerID(t.id).WithRetryable(false)
	default:
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.NewTowerError("write", err).WithTowerID(t.id)
	}
	return nil
}

func (t *Tower) emit(name string, data any) error {
	frame, err := encodeEvent(name, data)
	if err != nil {
		return err
	}
	if err := t.write(frame); err != nil {
		var towerErr *errors.TowerError
		if errors.As(err, &towerErr) {
			towerErr.WithEvent(name)
		}
		return err
	}
	return nil
}

// Run reads from the tower until ctx is cancelled or the connection ends,
// answering pings and publishing events. It returns nil when ctx is
// cancelled. A DisconnectedEvent is published in every case.
func (t *Tower) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	for {
		_, frame, err := t.conn.ReadMessage()
		now := t.clock.Now()
		if err != nil {
			if ctx.Err() != nil {
				t.bus.Publish(event.NewDisconnectedEvent(nil, now))
				return nil
			}
			towerErr := errors.NewTowerError("connection lost", errors.Join(errors.ErrTowerClosed, err)).WithTowerID(t.id)
			t.bus.Publish(event.NewDisconnectedEvent(towerErr, now))
			_ = t.Close()
			return towerErr
		}

		if err := t.handle(frame, now); err != nil {
			if errors.Is(err, errors.ErrTowerClosed) {
				t.bus.Publish(event.NewDisconnectedEvent(err, now))
				_ = t.Close()
				return err
			}
			t.logger.Warn("ignoring bad packet", "error", err.Error(), "frame", string(frame),
				"severity", errors.GetSeverity(err).String())
		}
	}
}

func (t *Tower) handle(frame []byte, now time.Time) error {
	p, err := decodePacket(frame)
	if err != nil {
		return err
	}

	switch p.engine {
	case enginePing:
		return t.write([]byte{enginePong})
	case engineClose:
		return errors.NewTowerError("server closed engine", errors.ErrTowerClosed).WithTowerID(t.id)
	case engineMessage:
	default:
		return nil
	}

	switch p.socket {
	case socketDisconnect:
		return errors.NewTowerError("server disconnected namespace", errors.ErrTowerClosed).WithTowerID(t.id)
	case socketEvent:
		return t.dispatch(p.event, p.data, now)
	}
	return nil
}

func (t *Tower) dispatch(name string, data json.RawMessage, now time.Time) error {
	decode := func(v any) error {
		if err := json.Unmarshal(data, v); err != nil {
			return errors.NewTowerError("decoding payload", errors.Join(errors.ErrProtocol, err)).
				WithTowerID(t.id).WithEvent(name).WithSeverity(errors.SeverityWarning)
		}
		return nil
	}

	switch name {
	case onBellRung:
		var msg bellRungPayload
		if err := decode(&msg); err != nil {
			return err
		}
		return t.onBellRung(msg, now)

	case onGlobalState:
		var msg globalStatePayload
		if err := decode(&msg); err != nil {
			return err
		}
		states := t.setStates(msg.GlobalBellState)
		t.bus.Publish(event.NewGlobalStateEvent(states, now))

	case onSizeChange:
		var msg sizeChangePayload
		if err := decode(&msg); err != nil {
			return err
		}
		t.resize(msg.Size)
		t.logger.Info("tower size changed", "stage", msg.Size)
		t.bus.Publish(event.NewSizeChangedEvent(msg.Size, now))

	case onAssignUser:
		var msg assignUserPayload
		if err := decode(&msg); err != nil {
			return err
		}
		b := bell.FromNumber(msg.Bell)
		t.mu.Lock()
		if msg.User == "" {
			delete(t.users, b)
		} else {
			t.users[b] = msg.User
		}
		t.mu.Unlock()
		t.logger.Debug("bell assigned", "bell", b.String(), "user", msg.User)
		t.bus.Publish(event.NewUserAssignedEvent(b, msg.User, now))

	case onCall:
		var msg callPayload
		if err := decode(&msg); err != nil {
			return err
		}
		t.logger.Info("call", "call", msg.Call)
		t.bus.Publish(event.NewCallEvent(msg.Call, now))

	case onUserLeft:
		var msg userLeftPayload
		if err := decode(&msg); err != nil {
			return err
		}
		t.mu.Lock()
		for b, user := range t.users {
			if user == msg.UserName {
				delete(t.users, b)
			}
		}
		t.mu.Unlock()
		t.bus.Publish(event.NewUserLeftEvent(msg.UserName, now))

	default:
		t.logger.Debug("unhandled event", "event", name)
	}
	return nil
}

// onBellRung updates the tower state from a strike. The server reports the
// stroke each bell is now at, so the stroke just rung is its opposite.
func (t *Tower) onBellRung(msg bellRungPayload, now time.Time) error {
	who := bell.FromNumber(msg.WhoRang)
	t.setStates(msg.GlobalBellState)

	t.mu.RLock()
	inRange := who.Index() >= 0 && who.Index() < len(t.states)
	var next bell.Stroke
	if inRange {
		next = t.states[who.Index()]
	}
	t.mu.RUnlock()

	if !inRange {
		return errors.NewTowerError("strike from unknown bell", errors.ErrProtocol).
			WithTowerID(t.id).WithEvent(onBellRung)
	}

	rung := next.Opposite()
	t.logger.Debug("bell rung", "bell", who.String(), "stroke", rung.String())
	t.bus.Publish(event.NewBellRungEvent(who, rung, now))
	return nil
}

func (t *Tower) setStates(raw []bool) []bell.Stroke {
	states := make([]bell.Stroke, len(raw))
	for i, hand := range raw {
		states[i] = bell.Stroke(hand)
	}

	t.mu.Lock()
	t.states = states
	t.mu.Unlock()

	return append([]bell.Stroke(nil), states...)
}

// resize sets every bell to handstroke and forgets assignments of bells
// that no longer exist.
func (t *Tower) resize(stage int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.states = make([]bell.Stroke, stage)
	for i := range t.states {
		t.states[i] = bell.Handstroke
	}
	for b := range t.users {
		if b.Number() > stage {
			delete(t.users, b)
		}
	}
}

// RingBell rings b, which must currently be at stroke. If the tower has the
// bell at the other stroke nothing is sent; ringing it would leave the bot
// a stroke out for the rest of the touch.
func (t *Tower) RingBell(b bell.Bell, stroke bell.Stroke) error {
	t.mu.RLock()
	if b.Index() < 0 || b.Index() >= len(t.states) {
		t.mu.RUnlock()
		return errors.NewValidationError("bell not in tower").WithField("bell").WithValue(b.Number())
	}
	current := t.states[b.Index()]
	t.mu.RUnlock()

	if current != stroke {
		t.logger.Warn("bell on opposite stroke, not ringing",
			"bell", b.String(),
			"want", stroke.String(),
			"tower_has", current.String(),
		)
		return nil
	}

	return t.emit(emitBellRung, ringPayload{Bell: b.Number(), Stroke: bool(stroke), TowerID: t.id})
}

// ID returns the tower ID.
func (t *Tower) ID() int { return t.id }

// Bus returns the bus the tower publishes on.
func (t *Tower) Bus() *event.Bus { return t.bus }

// NumberOfBells returns the tower's current stage.
func (t *Tower) NumberOfBells() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

// Stroke returns the stroke b will ring next.
func (t *Tower) Stroke(b bell.Bell) (bell.Stroke, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b.Index() < 0 || b.Index() >= len(t.states) {
		return bell.Handstroke, false
	}
	return t.states[b.Index()], true
}

// UserControlled reports whether a human is assigned to b.
func (t *Tower) UserControlled(b bell.Bell) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.users[b] != ""
}

// User returns the name of the ringer assigned to b, if any.
func (t *Tower) User(b bell.Bell) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.users[b]
}

// Close disconnects from the tower. It is safe to call more than once.
func (t *Tower) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.TextMessage, []byte{engineMessage, socketDisconnect})
		close(t.closed)
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
