// Package bell defines the identifiers shared by every part of the bot: bells
// and the two strokes a bell alternates between.
package bell

import (
	"fmt"
	"strings"
)

// names maps a bell index to its conventional single-character name.
const names = "1234567890ETABCD"

// MaxStage is the largest number of bells that can be named.
const MaxStage = len(names)

// Bell identifies one bell in the tower. The zero value is the treble.
type Bell struct {
	index int
}

// FromIndex returns the bell at the given 0-based index.
func FromIndex(index int) Bell {
	return Bell{index: index}
}

// FromNumber returns the bell with the given 1-based number.
func FromNumber(number int) Bell {
	return Bell{index: number - 1}
}

// Parse converts a bell name such as "1", "0" or "E" back into a Bell.
func Parse(name string) (Bell, error) {
	if len(name) != 1 {
		return Bell{}, fmt.Errorf("invalid bell name %q", name)
	}
	i := strings.IndexByte(names, strings.ToUpper(name)[0])
	if i < 0 {
		return Bell{}, fmt.Errorf("invalid bell name %q", name)
	}
	return Bell{index: i}, nil
}

// Index returns the 0-based index of the bell.
func (b Bell) Index() int { return b.index }

// Number returns the 1-based number of the bell.
func (b Bell) Number() int { return b.index + 1 }

// String returns the bell's name, falling back to its number for bells
// beyond the named range.
func (b Bell) String() string {
	if b.index >= 0 && b.index < len(names) {
		return names[b.index : b.index+1]
	}
	return fmt.Sprintf("<%d>", b.Number())
}

// Stroke is one of the two alternating positions a bell is rung in.
type Stroke bool

const (
	Handstroke Stroke = true
	Backstroke Stroke = false
)

// StrokeForRow returns the stroke rung in the given row: even rows are
// handstrokes.
func StrokeForRow(row int) Stroke {
	return Stroke(row%2 == 0)
}

// IsHand reports whether s is a handstroke.
func (s Stroke) IsHand() bool { return s == Handstroke }

// IsBack reports whether s is a backstroke.
func (s Stroke) IsBack() bool { return s == Backstroke }

// Opposite returns the other stroke.
func (s Stroke) Opposite() Stroke { return !s }

func (s Stroke) String() string {
	if s {
		return "HANDSTROKE"
	}
	return "BACKSTROKE"
}

// Short returns "H" or "B".
func (s Stroke) Short() string {
	if s {
		return "H"
	}
	return "B"
}

// Row is one complete sequence of strikes.
type Row []Bell

// Rounds returns the row 1234...n for the given stage.
func Rounds(stage int) Row {
	row := make(Row, stage)
	for i := range row {
		row[i] = FromIndex(i)
	}
	return row
}

func (r Row) String() string {
	var sb strings.Builder
	for _, b := range r {
		sb.WriteString(b.String())
	}
	return sb.String()
}

// Equal reports whether two rows contain the same bells in the same order.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}
