package rhythm

import (
	"time"

	"github.com/Iron-Ham/wheatley/internal/bell"
)

// Predictor is a base rhythm: it predicts when each place should strike and
// learns from the strikes it is shown.
type Predictor interface {
	// ExpectBell records that a bell is expected to strike at the given row,
	// place and stroke, so that a later strike can be placed on the line.
	ExpectBell(b bell.Bell, row, place int, stroke bell.Stroke)

	// OnStrike is called whenever a bell strikes, with the instant expressed
	// on the predictor's own timeline.
	OnStrike(b bell.Bell, stroke bell.Stroke, at time.Time)

	// InitialiseLine resets the predictor when ringing starts.
	InitialiseLine(stage int, userControlsTreble bool, start time.Time, userBells int)

	// DueTime returns the predicted instant for a place. ok is false while
	// the predictor has no line yet, e.g. while waiting for a human treble
	// to pull off.
	DueTime(row, place int) (due time.Time, ok bool)
}
