package rowgen

import (
	"strings"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/errors"
)

const (
	// DefaultBob is the lead-end change for a bob in plain bob methods.
	DefaultBob = "14"
	// DefaultSingle is the lead-end change for a single in plain bob methods.
	DefaultSingle = "1234"
)

type call int

const (
	callNone call = iota
	callBob
	callSingle
)

func (c call) String() string {
	switch c {
	case callBob:
		return "bob"
	case callSingle:
		return "single"
	default:
		return "plain"
	}
}

// ParsePlaceNotation parses one lead of place notation for stage bells.
//
// Changes are separated by '.' or by a cross ('x', 'X' or '-'). Places are
// bell names ("1".."9", "0", "E", "T", ...). Implicit external places are
// added, so "3" on five bells is "3" and "14" on six is "14" but "4" on six
// is "14". Notation with one comma, such as "x16x16x16,12", is two
// palindromic halves: each half is rung forwards then backwards without
// repeating its last change.
func ParsePlaceNotation(stage int, notation string) ([]Change, error) {
	if err := checkStage(stage); err != nil {
		return nil, err
	}

	halves := strings.Split(notation, ",")
	if len(halves) > 2 {
		return nil, errors.NewMethodError("more than one comma", errors.ErrInvalidPlaceNotation).
			WithNotation(notation).WithPosition(len(halves[0]) + 1 + len(halves[1]))
	}

	var lead []Change
	offset := 0
	for _, half := range halves {
		changes, err := parseSegment(stage, notation, half, offset)
		if err != nil {
			return nil, err
		}
		if len(halves) == 2 {
			changes = palindrome(changes)
		}
		lead = append(lead, changes...)
		offset += len(half) + 1
	}
	if len(lead) == 0 {
		return nil, errors.NewMethodError("no changes", errors.ErrInvalidPlaceNotation).WithNotation(notation)
	}
	return lead, nil
}

func palindrome(changes []Change) []Change {
	out := make([]Change, 0, 2*len(changes))
	out = append(out, changes...)
	for i := len(changes) - 2; i >= 0; i-- {
		out = append(out, changes[i])
	}
	return out
}

// parseSegment parses the changes in segment, which starts at byte offset
// within notation.
func parseSegment(stage int, notation, segment string, offset int) ([]Change, error) {
	var (
		changes []Change
		places  []int
		start   = -1
	)

	flush := func() error {
		if start < 0 {
			return nil
		}
		c, err := normalise(stage, places)
		if err != nil {
			return err.WithNotation(notation).WithPosition(start)
		}
		changes = append(changes, c)
		places = nil
		start = -1
		return nil
	}

	for i, r := range segment {
		pos := offset + i
		switch {
		case r == 'x' || r == 'X' || r == '-':
			if err := flush(); err != nil {
				return nil, err
			}
			if stage%2 == 1 {
				return nil, errors.NewMethodError("cross on an odd stage", errors.ErrInvalidPlaceNotation).
					WithNotation(notation).WithPosition(pos).WithStage(stage)
			}
			changes = append(changes, Change{})
		case r == '.':
			if err := flush(); err != nil {
				return nil, err
			}
		case r == ' ' || r == '\t':
		default:
			b, err := bell.Parse(string(r))
			if err != nil {
				return nil, errors.NewMethodError("unexpected character", errors.ErrInvalidPlaceNotation).
					WithNotation(notation).WithPosition(pos)
			}
			if start < 0 {
				start = pos
			}
			places = append(places, b.Number())
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return changes, nil
}

// normalise checks that places can be made together on stage bells and adds
// the implicit places at either end.
func normalise(stage int, places []int) (Change, *errors.MethodError) {
	for i, p := range places {
		if p > stage {
			return nil, errors.NewMethodError("place beyond stage", errors.ErrInvalidPlaceNotation).WithStage(stage)
		}
		if i > 0 && p <= places[i-1] {
			return nil, errors.NewMethodError("places out of order", errors.ErrInvalidPlaceNotation)
		}
	}

	c := make(Change, 0, len(places)+2)
	if places[0]%2 == 0 {
		c = append(c, 1)
	}
	c = append(c, places...)
	if (stage-places[len(places)-1])%2 == 1 {
		c = append(c, stage)
	}

	for i := 1; i < len(c); i++ {
		if (c[i]-c[i-1]-1)%2 == 1 {
			return nil, errors.NewMethodError("odd number of bells between places", errors.ErrInvalidPlaceNotation)
		}
	}
	return c, nil
}

// PlaceNotation rings a method from its place notation, repeating the lead
// until reset. A latched bob or single replaces the last change of the
// current lead.
type PlaceNotation struct {
	stage   int
	lead    []Change
	bob     Change
	single  Change
	row     bell.Row
	index   int
	pending call
}

// NewPlaceNotation creates a generator for notation on stage bells. Empty
// bob or single notation falls back to DefaultBob and DefaultSingle.
func NewPlaceNotation(stage int, notation, bob, single string) (*PlaceNotation, error) {
	lead, err := ParsePlaceNotation(stage, notation)
	if err != nil {
		return nil, err
	}
	if bob == "" {
		bob = DefaultBob
	}
	if single == "" {
		single = DefaultSingle
	}
	bobChange, err := parseCall(stage, bob)
	if err != nil {
		return nil, err
	}
	singleChange, err := parseCall(stage, single)
	if err != nil {
		return nil, err
	}

	return &PlaceNotation{
		stage:  stage,
		lead:   lead,
		bob:    bobChange,
		single: singleChange,
		row:    bell.Rounds(stage),
	}, nil
}

func parseCall(stage int, notation string) (Change, error) {
	changes, err := ParsePlaceNotation(stage, notation)
	if err != nil {
		return nil, err
	}
	if len(changes) != 1 {
		return nil, errors.NewMethodError("call must be a single change", errors.ErrInvalidPlaceNotation).
			WithNotation(notation)
	}
	return changes[0], nil
}

// Stage implements Generator.
func (p *PlaceNotation) Stage() int { return p.stage }

// LeadLength is the number of changes in one lead.
func (p *PlaceNotation) LeadLength() int { return len(p.lead) }

// NextRow implements Generator. The stroke does not affect the row.
func (p *PlaceNotation) NextRow(_ bool) bell.Row {
	c := p.lead[p.index]
	if p.index == len(p.lead)-1 {
		switch p.pending {
		case callBob:
			c = p.bob
		case callSingle:
			c = p.single
		}
		p.pending = callNone
	}
	p.index = (p.index + 1) % len(p.lead)
	p.row = c.Apply(p.row)
	return p.row
}

// SetBob implements Generator.
func (p *PlaceNotation) SetBob() { p.pending = callBob }

// SetSingle implements Generator.
func (p *PlaceNotation) SetSingle() { p.pending = callSingle }

// Pending reports the call that will be rung at the next lead end.
func (p *PlaceNotation) Pending() string { return p.pending.String() }

// Reset implements Generator.
func (p *PlaceNotation) Reset() {
	p.row = bell.Rounds(p.stage)
	p.index = 0
	p.pending = callNone
}

var _ Generator = (*PlaceNotation)(nil)
