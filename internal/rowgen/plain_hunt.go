package rowgen

import (
	"github.com/Iron-Ham/wheatley/internal/bell"
)

// PlainHunt rings plain hunt on any stage. On even stages handstroke rows
// cross and backstroke rows make the end places; on odd stages the
// handstroke change makes the last place and the backstroke change makes
// lead.
type PlainHunt struct {
	stage int
	row   bell.Row
}

// NewPlainHunt creates a plain hunt generator for stage bells.
func NewPlainHunt(stage int) (*PlainHunt, error) {
	if err := checkStage(stage); err != nil {
		return nil, err
	}
	return &PlainHunt{stage: stage, row: bell.Rounds(stage)}, nil
}

// Stage implements Generator.
func (p *PlainHunt) Stage() int { return p.stage }

// NextRow implements Generator.
func (p *PlainHunt) NextRow(handstroke bool) bell.Row {
	p.row = p.change(handstroke).Apply(p.row)
	return p.row
}

func (p *PlainHunt) change(handstroke bool) Change {
	odd := p.stage%2 == 1
	switch {
	case handstroke && odd:
		return Change{p.stage}
	case handstroke:
		return Change{}
	case odd:
		return Change{1}
	default:
		return Change{1, p.stage}
	}
}

// SetBob is a no-op: plain hunt has no calls.
func (p *PlainHunt) SetBob() {}

// SetSingle is a no-op: plain hunt has no calls.
func (p *PlainHunt) SetSingle() {}

// Reset implements Generator.
func (p *PlainHunt) Reset() {
	p.row = bell.Rounds(p.stage)
}

var _ Generator = (*PlainHunt)(nil)
