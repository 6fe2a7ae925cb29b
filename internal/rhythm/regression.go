package rhythm

import (
	"math"
	"sync"
	"time"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/logging"
)

// Points whose weight falls to this value or below are dropped from the data set.
const weightRejectionThreshold = 0.001

// defaultBlowIntervals is the gap between blows used before any strike has
// been observed, by stage.
var defaultBlowIntervals = map[int]time.Duration{
	4:  400 * time.Millisecond,
	6:  300 * time.Millisecond,
	8:  300 * time.Millisecond,
	10: 200 * time.Millisecond,
	12: 200 * time.Millisecond,
}

const fallbackBlowInterval = 300 * time.Millisecond

// RegressionConfig tunes a Regression.
type RegressionConfig struct {
	// Inertia controls how slowly a new line replaces the old one:
	// 0 adopts every new fit at once, 1 never moves. Zero means 0.5.
	Inertia float64
	// HandstrokeGap is the open handstroke lead, in blows.
	HandstrokeGap float64
	// MaxRowsInDataset bounds the data set to this many rows' worth of
	// strikes from human-controlled bells.
	MaxRowsInDataset float64
}

// DefaultRegressionConfig returns the settings used when nothing is configured.
func DefaultRegressionConfig() RegressionConfig {
	return RegressionConfig{
		Inertia:          0.5,
		HandstrokeGap:    1,
		MaxRowsInDataset: 3,
	}
}

type strikeKey struct {
	bell   bell.Bell
	stroke bell.Stroke
}

type placeRef struct {
	row   int
	place int
}

// Regression predicts strike times from a weighted linear regression of
// observed strikes against their positions on the line.
type Regression struct {
	logger *logging.Logger

	mu       sync.Mutex
	cfg      RegressionConfig
	inertia  float64
	stage    int
	origin   time.Time
	started  bool
	start    float64 // seconds after origin
	interval float64 // seconds per blow

	userBells int
	expected  map[strikeKey]placeRef
	data      []dataPoint
}

// NewRegression creates a predictor. It predicts nothing until InitialiseLine
// has been called.
func NewRegression(cfg RegressionConfig, logger *logging.Logger) *Regression {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.MaxRowsInDataset <= 0 {
		cfg.MaxRowsInDataset = DefaultRegressionConfig().MaxRowsInDataset
	}
	return &Regression{
		logger:   logger.WithComponent("rhythm.regression"),
		cfg:      cfg,
		inertia:  inertiaOrDefault(cfg.Inertia),
		expected: make(map[strikeKey]placeRef),
	}
}

func inertiaOrDefault(v float64) float64 {
	if v == 0 {
		return DefaultRegressionConfig().Inertia
	}
	return v
}

// SetInertia changes the inertia used for subsequent fits.
func (r *Regression) SetInertia(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Inertia = v
	r.inertia = inertiaOrDefault(v)
}

// blowTime converts a row and place into a position on the line, counting
// the handstroke gap once per whole pull.
func (r *Regression) blowTime(row, place int) float64 {
	return float64(row*r.stage+place) + float64(row/2)*r.cfg.HandstrokeGap
}

func (r *Regression) seconds(t time.Time) float64 {
	return t.Sub(r.origin).Seconds()
}

func (r *Regression) instant(seconds float64) time.Time {
	return r.origin.Add(time.Duration(seconds * float64(time.Second)))
}

// ExpectBell implements Predictor.
func (r *Regression) ExpectBell(b bell.Bell, row, place int, stroke bell.Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expected[strikeKey{b, stroke}] = placeRef{row: row, place: place}
}

// OnStrike implements Predictor. Strikes of bells that were not expected at
// that stroke are logged and otherwise ignored.
func (r *Regression) OnStrike(b bell.Bell, stroke bell.Stroke, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strikeKey{b, stroke}
	ref, ok := r.expected[key]
	if !ok {
		r.logger.Warn("bell rang unexpectedly", "bell", b.String(), "stroke", stroke.Short())
		return
	}
	delete(r.expected, key)

	expectedBlow := r.blowTime(ref.row, ref.place)
	realTime := r.seconds(at)

	var diff float64
	if r.started && r.interval > 0 {
		diff = (realTime-r.start)/r.interval - expectedBlow
	}
	r.logger.Info("bell off by places", "bell", b.String(), "places", diff)

	if expectedBlow == 0 {
		r.start = realTime
		r.started = true
	}

	weight := math.Exp(-diff * diff)
	if len(r.data) <= 1 {
		weight = 1
	}
	r.addDataPoint(ref.row, expectedBlow, realTime, weight)
}

func (r *Regression) addDataPoint(row int, blow, realTime, weight float64) {
	r.data = append(r.data, dataPoint{blowTime: blow, realTime: realTime, weight: weight})
	if len(r.data) < 2 {
		return
	}

	if start, interval, ok := fitLine(r.data); ok && interval > 0 {
		// The first row takes the new line outright for a clean pull-off.
		inertia := r.inertia
		if row == 0 {
			inertia = 0
		}
		r.start = lerp(start, r.start, inertia)
		r.interval = lerp(interval, r.interval, inertia)
		r.logger.Debug("updated line", "interval_ms", r.interval*1000, "points", len(r.data))
	}

	kept := r.data[:0]
	for _, p := range r.data {
		if p.weight > weightRejectionThreshold {
			kept = append(kept, p)
		}
	}
	r.data = kept

	maxLen := int(r.cfg.MaxRowsInDataset * float64(r.userBells))
	if len(r.data) >= maxLen && len(r.data) > 0 {
		r.data = r.data[1:]
	}
}

// InitialiseLine implements Predictor. When the bot rings the treble the
// line starts at start; otherwise no prediction is made until the human
// treble has rung.
func (r *Regression) InitialiseLine(stage int, userControlsTreble bool, start time.Time, userBells int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = stage
	r.userBells = userBells
	r.data = nil
	r.expected = make(map[strikeKey]placeRef)
	r.origin = start
	r.start = 0

	interval, ok := defaultBlowIntervals[stage]
	if !ok {
		interval = fallbackBlowInterval
	}
	r.interval = interval.Seconds()

	if userControlsTreble {
		r.started = false
		r.logger.Debug("waiting for pull off", "stage", stage)
		return
	}
	r.started = true
	r.addDataPoint(0, 0, 0, 1)
}

// DueTime implements Predictor.
func (r *Regression) DueTime(row, place int) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.stage == 0 {
		return time.Time{}, false
	}
	return r.instant(r.start + r.interval*r.blowTime(row, place)), true
}

// BlowInterval returns the current estimate of the gap between blows.
func (r *Regression) BlowInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.interval * float64(time.Second))
}

var _ Predictor = (*Regression)(nil)
