// Package event provides a pub-sub event bus that decouples the tower
// connection from the parts of wheatley that react to it.
//
// The tower client publishes what it hears (strikes, calls, size changes,
// bell assignments). The bot subscribes to those and publishes its own
// progress (rows started, bells struck, delay changes), which the terminal
// monitor and the session log consume.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Timestamps
//
// Event constructors take the instant explicitly so that callers can use an
// injected clock. A [BellRungEvent]'s timestamp is the instant the strike was
// heard, and is what the rhythm uses as the strike's raw time.
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine and protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeCall, func(e event.Event) {
//	    call := e.(event.CallEvent)
//	    logger.Info("call", "call", call.Call)
//	})
//
//	bus.Publish(event.NewCallEvent("Look to", clock.Now()))
package event
