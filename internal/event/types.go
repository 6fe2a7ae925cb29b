package event

import (
	"time"

	"github.com/Iron-Ham/wheatley/internal/bell"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "bell.rung", "tower.call").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event types published on the bus.
const (
	TypeBellRung       = "bell.rung"
	TypeGlobalState    = "tower.global_state"
	TypeCall           = "tower.call"
	TypeSizeChanged    = "tower.size_changed"
	TypeUserAssigned   = "tower.user_assigned"
	TypeUserLeft       = "tower.user_left"
	TypeDisconnected   = "tower.disconnected"
	TypeRowStarted     = "bot.row_started"
	TypeBellStruck     = "bot.bell_struck"
	TypeDelayChanged   = "bot.delay_changed"
	TypeRingingChanged = "bot.ringing_changed"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, at time.Time) baseEvent {
	return baseEvent{eventType: eventType, timestamp: at}
}

// -----------------------------------------------------------------------------
// Tower Events
// -----------------------------------------------------------------------------

// BellRungEvent is published when the tower reports a strike. Stroke is the
// stroke that was rung, and the timestamp is when the report arrived.
type BellRungEvent struct {
	baseEvent
	Bell   bell.Bell
	Stroke bell.Stroke
}

// NewBellRungEvent creates a BellRungEvent.
func NewBellRungEvent(b bell.Bell, stroke bell.Stroke, at time.Time) BellRungEvent {
	return BellRungEvent{
		baseEvent: newBaseEvent(TypeBellRung, at),
		Bell:      b,
		Stroke:    stroke,
	}
}

// GlobalStateEvent is published when the tower sends every bell's stroke.
type GlobalStateEvent struct {
	baseEvent
	States []bell.Stroke // stroke each bell will ring next
}

// NewGlobalStateEvent creates a GlobalStateEvent.
func NewGlobalStateEvent(states []bell.Stroke, at time.Time) GlobalStateEvent {
	return GlobalStateEvent{
		baseEvent: newBaseEvent(TypeGlobalState, at),
		States:    states,
	}
}

// CallEvent is published when a ringer makes a call such as "Go" or "Bob".
type CallEvent struct {
	baseEvent
	Call string
}

// NewCallEvent creates a CallEvent.
func NewCallEvent(call string, at time.Time) CallEvent {
	return CallEvent{
		baseEvent: newBaseEvent(TypeCall, at),
		Call:      call,
	}
}

// SizeChangedEvent is published when the tower changes its number of bells.
type SizeChangedEvent struct {
	baseEvent
	Stage int
}

// NewSizeChangedEvent creates a SizeChangedEvent.
func NewSizeChangedEvent(stage int, at time.Time) SizeChangedEvent {
	return SizeChangedEvent{
		baseEvent: newBaseEvent(TypeSizeChanged, at),
		Stage:     stage,
	}
}

// UserAssignedEvent is published when a bell is assigned to a ringer or
// unassigned (empty User).
type UserAssignedEvent struct {
	baseEvent
	Bell bell.Bell
	User string
}

// NewUserAssignedEvent creates a UserAssignedEvent.
func NewUserAssignedEvent(b bell.Bell, user string, at time.Time) UserAssignedEvent {
	return UserAssignedEvent{
		baseEvent: newBaseEvent(TypeUserAssigned, at),
		Bell:      b,
		User:      user,
	}
}

// UserLeftEvent is published when a ringer leaves the tower.
type UserLeftEvent struct {
	baseEvent
	User string
}

// NewUserLeftEvent creates a UserLeftEvent.
func NewUserLeftEvent(user string, at time.Time) UserLeftEvent {
	return UserLeftEvent{
		baseEvent: newBaseEvent(TypeUserLeft, at),
		User:      user,
	}
}

// DisconnectedEvent is published once when the tower connection ends.
type DisconnectedEvent struct {
	baseEvent
	Err error // nil on a clean close
}

// NewDisconnectedEvent creates a DisconnectedEvent.
func NewDisconnectedEvent(err error, at time.Time) DisconnectedEvent {
	return DisconnectedEvent{
		baseEvent: newBaseEvent(TypeDisconnected, at),
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Bot Events
// -----------------------------------------------------------------------------

// RowStartedEvent is published when the bot starts a new row.
type RowStartedEvent struct {
	baseEvent
	Number int // 0-based row number since Look To
	Row    bell.Row
	Stroke bell.Stroke
	Rounds bool // true while ringing rounds
}

// NewRowStartedEvent creates a RowStartedEvent.
func NewRowStartedEvent(number int, row bell.Row, stroke bell.Stroke, rounds bool, at time.Time) RowStartedEvent {
	return RowStartedEvent{
		baseEvent: newBaseEvent(TypeRowStarted, at),
		Number:    number,
		Row:       row,
		Stroke:    stroke,
		Rounds:    rounds,
	}
}

// BellStruckEvent is published when the bot's scheduler moves past a place,
// either by ringing the bell itself or by a human ringing it.
type BellStruckEvent struct {
	baseEvent
	Bell           bell.Bell
	Row            int
	Place          int
	Stroke         bell.Stroke
	UserControlled bool
}

// NewBellStruckEvent creates a BellStruckEvent.
func NewBellStruckEvent(b bell.Bell, row, place int, stroke bell.Stroke, userControlled bool, at time.Time) BellStruckEvent {
	return BellStruckEvent{
		baseEvent:      newBaseEvent(TypeBellStruck, at),
		Bell:           b,
		Row:            row,
		Place:          place,
		Stroke:         stroke,
		UserControlled: userControlled,
	}
}

// DelayChangedEvent is published when following the ringers moves the delay.
type DelayChangedEvent struct {
	baseEvent
	Delay time.Duration
}

// NewDelayChangedEvent creates a DelayChangedEvent.
func NewDelayChangedEvent(delay time.Duration, at time.Time) DelayChangedEvent {
	return DelayChangedEvent{
		baseEvent: newBaseEvent(TypeDelayChanged, at),
		Delay:     delay,
	}
}

// RingingChangedEvent is published when the bot moves between standing,
// rounds and changes.
type RingingChangedEvent struct {
	baseEvent
	State string
}

// NewRingingChangedEvent creates a RingingChangedEvent.
func NewRingingChangedEvent(state string, at time.Time) RingingChangedEvent {
	return RingingChangedEvent{
		baseEvent: newBaseEvent(TypeRingingChanged, at),
		State:     state,
	}
}
