package rhythm

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/logging"
)

// waitContext describes the single strike the scheduler is blocked on.
type waitContext struct {
	bell   bell.Bell
	stroke bell.Stroke
	due    time.Time
	// adjusts is false for waits that have no reference instant; a matching
	// strike then releases the wait without touching the delay.
	adjusts bool
	// timed waits also end at due; untimed ones only on a strike.
	timed    bool
	released chan struct{}
}

// UserSync decorates a Predictor so the bot waits for human ringers and
// follows their drift. It is safe for concurrent use by one feeding
// goroutine and one scheduling goroutine.
type UserSync struct {
	inner  Predictor
	clock  clock.Clock
	logger *logging.Logger

	mu       sync.Mutex
	ledger   strikeLedger
	registry *expectationRegistry
	drift    driftTracker
	waiting  *waitContext
}

// Option configures a UserSync.
type Option func(*UserSync)

// WithClock sets the clock used to decide when a due instant has arrived.
func WithClock(c clock.Clock) Option {
	return func(u *UserSync) { u.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(u *UserSync) { u.logger = l }
}

// NewUserSync wraps inner. The delay starts at zero.
func NewUserSync(inner Predictor, opts ...Option) *UserSync {
	ledger := make(strikeLedger)
	u := &UserSync{
		inner:    inner,
		clock:    clock.New(),
		logger:   logging.NopLogger(),
		ledger:   ledger,
		registry: newExpectationRegistry(ledger),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.WithComponent("rhythm.user_sync")
	return u
}

// RegisterExpectation records that the scheduler expects b to strike at the
// given stroke for this row and place. The expectation is also passed on to
// the inner predictor.
func (u *UserSync) RegisterExpectation(b bell.Bell, row, place int, stroke bell.Stroke) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.registry.registerExpectation(b, row, place, stroke)
	u.inner.ExpectBell(b, row, place, stroke)
}

// ExpectBell implements Predictor.
func (u *UserSync) ExpectBell(b bell.Bell, row, place int, stroke bell.Stroke) {
	u.RegisterExpectation(b, row, place, stroke)
}

// RecordStrike is called for every strike reported by the tower, with the
// real instant it was heard at.
//
// The inner predictor always receives the strike shifted by the delay held
// before this call. If the strike is the one the scheduler is waiting on,
// the delay then moves by the strike's distance from the due instant and the
// waiter is released.
func (u *UserSync) RecordStrike(b bell.Bell, stroke bell.Stroke, raw time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()

	before := u.drift.currentDelay()
	u.inner.OnStrike(b, stroke, raw.Add(-before))
	u.ledger.recordStrike(b, stroke, raw)

	w := u.waiting
	if w == nil || w.bell != b || w.stroke != stroke {
		return
	}
	if w.adjusts {
		u.drift.adjust(raw, w.due)
	}
	close(w.released)
	u.waiting = nil

	u.logger.Debug("awaited bell struck",
		"bell", b.String(),
		"stroke", stroke.String(),
		"delay_before_ms", before.Milliseconds(),
		"delay_ms", u.drift.currentDelay().Milliseconds(),
	)
}

// OnStrike implements Predictor.
func (u *UserSync) OnStrike(b bell.Bell, stroke bell.Stroke, at time.Time) {
	u.RecordStrike(b, stroke, at)
}

// WaitUntilDueOrStruck blocks until b has struck at stroke or until the due
// instant, corrected by the current delay, has arrived.
//
// It returns at once when the bell's last recorded strike is already at
// stroke, even if that strike came before the expectation was registered.
// row, place and userControlled are informational only. The only error is
// the context's, in which case the delay is left as it was.
func (u *UserSync) WaitUntilDueOrStruck(ctx context.Context, due time.Time, b bell.Bell, row, place int, userControlled bool, stroke bell.Stroke) error {
	return u.wait(ctx, &waitContext{
		bell:     b,
		stroke:   stroke,
		due:      due,
		adjusts:  true,
		released: make(chan struct{}),
	}, true, row, place, userControlled)
}

// WaitForStrike blocks until b has struck at stroke, however long that
// takes. If expected is non-zero the matching strike moves the delay by its
// distance from expected; a zero expected leaves the delay alone, which is
// what the scheduler wants while a human treble pulls off.
func (u *UserSync) WaitForStrike(ctx context.Context, expected time.Time, b bell.Bell, row, place int, stroke bell.Stroke) error {
	return u.wait(ctx, &waitContext{
		bell:     b,
		stroke:   stroke,
		due:      expected,
		adjusts:  !expected.IsZero(),
		released: make(chan struct{}),
	}, false, row, place, true)
}

func (u *UserSync) wait(ctx context.Context, w *waitContext, timed bool, row, place int, userControlled bool) error {
	w.timed = timed
	log := u.logger.With(
		"bell", w.bell.String(),
		"stroke", w.stroke.String(),
		"row", row,
		"place", place,
		"user_controlled", userControlled,
	)

	u.mu.Lock()
	if u.registry.isSatisfied(w.bell, w.stroke) {
		u.mu.Unlock()
		log.Debug("bell already struck, not waiting")
		return nil
	}

	var deadline <-chan time.Time
	if timed {
		remaining := w.due.Add(u.drift.currentDelay()).Sub(u.clock.Now())
		if remaining <= 0 {
			u.mu.Unlock()
			return nil
		}
		timer := u.clock.Timer(remaining)
		defer timer.Stop()
		deadline = timer.C
	}
	u.waiting = w
	u.mu.Unlock()

	started := u.clock.Now()
	log.Debug("waiting for bell")

	select {
	case <-w.released:
		log.Debug("finished waiting", "waited_ms", u.clock.Since(started).Milliseconds())
		return nil
	case <-deadline:
		u.abandon(w)
		return nil
	case <-ctx.Done():
		u.abandon(w)
		log.Debug("wait cancelled")
		return ctx.Err()
	}
}

// abandon clears w if it is still the active wait. A strike may have
// released it concurrently, in which case the strike's adjustment stands.
func (u *UserSync) abandon(w *waitContext) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.waiting == w {
		u.waiting = nil
	}
}

// ForgetBell drops b's last strike and expectation once no human rings it,
// so a stale human strike cannot satisfy a later wait on the bell. A
// WaitForStrike on b is released without touching the delay; a timed wait
// runs on to its due instant.
func (u *UserSync) ForgetBell(b bell.Bell) {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.ledger, b)
	delete(u.registry.expected, b)
	if w := u.waiting; w != nil && w.bell == b && !w.timed {
		close(w.released)
		u.waiting = nil
		u.logger.Debug("ringer left, wait released", "bell", b.String())
	}
}

// InitialiseLine forgets every recorded strike and expectation and passes
// the start instant, shifted onto the idealized timeline, to the inner
// predictor. The delay is kept for the rest of the session.
func (u *UserSync) InitialiseLine(stage int, userControlsTreble bool, start time.Time, userBells int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	clear(u.ledger)
	clear(u.registry.expected)
	u.inner.InitialiseLine(stage, userControlsTreble, start.Add(-u.drift.currentDelay()), userBells)
}

// DueTime implements Predictor by asking the inner predictor.
func (u *UserSync) DueTime(row, place int) (time.Time, bool) {
	return u.inner.DueTime(row, place)
}

// Delay returns the current offset between the idealized timeline and the
// humans' real clock.
func (u *UserSync) Delay() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.drift.currentDelay()
}

// Waiting reports the bell the scheduler is currently blocked on, if any.
func (u *UserSync) Waiting() (bell.Bell, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.waiting == nil {
		return bell.Bell{}, false
	}
	return u.waiting.bell, true
}

var _ Predictor = (*UserSync)(nil)
