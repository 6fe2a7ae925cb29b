package rhythm

import (
	"time"

	"github.com/Iron-Ham/wheatley/internal/bell"
)

type strikeRecord struct {
	stroke bell.Stroke
	at     time.Time
}

// strikeLedger keeps the most recent strike of every bell. Older strikes are
// forgotten.
type strikeLedger map[bell.Bell]strikeRecord

func (l strikeLedger) recordStrike(b bell.Bell, stroke bell.Stroke, at time.Time) {
	l[b] = strikeRecord{stroke: stroke, at: at}
}

func (l strikeLedger) lastStroke(b bell.Bell) (bell.Stroke, bool) {
	rec, ok := l[b]
	return rec.stroke, ok
}

type expectation struct {
	row    int
	place  int
	stroke bell.Stroke
}

// expectationRegistry holds, per bell, the strike the scheduler currently
// expects. Satisfaction is judged from the ledger by stroke alone, so a bell
// that rang before its expectation was registered still counts.
type expectationRegistry struct {
	expected map[bell.Bell]expectation
	ledger   strikeLedger
}

func newExpectationRegistry(ledger strikeLedger) *expectationRegistry {
	return &expectationRegistry{
		expected: make(map[bell.Bell]expectation),
		ledger:   ledger,
	}
}

func (r *expectationRegistry) registerExpectation(b bell.Bell, row, place int, stroke bell.Stroke) {
	r.expected[b] = expectation{row: row, place: place, stroke: stroke}
}

func (r *expectationRegistry) isSatisfied(b bell.Bell, stroke bell.Stroke) bool {
	last, ok := r.ledger.lastStroke(b)
	return ok && last == stroke
}

// driftTracker holds the session-wide offset between the predictor's
// idealized clock and the humans' real clock.
type driftTracker struct {
	delay time.Duration
}

func (d *driftTracker) currentDelay() time.Duration {
	return d.delay
}

// adjust folds one awaited strike into the delay. There is no clamping or
// decay: the delay is a running sum over the session.
func (d *driftTracker) adjust(rawRing, due time.Time) {
	d.delay += rawRing.Sub(due)
}
