// Package rowgen produces the rows the bot rings once the band goes into
// changes.
//
// A Generator is stateful: each call to NextRow returns the row after the
// previous one. Calls (bob, single) are latched and applied at the next
// lead end by generators that understand them.
package rowgen

import (
	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/errors"
)

// Generator produces successive rows of a method.
type Generator interface {
	// Stage is the number of bells the generator rings.
	Stage() int
	// NextRow returns the next row. handstroke reports which stroke the row
	// will be rung at.
	NextRow(handstroke bool) bell.Row
	// SetBob latches a bob for the next lead end.
	SetBob()
	// SetSingle latches a single for the next lead end.
	SetSingle()
	// Reset returns the generator to rounds and clears any pending call.
	Reset()
}

// Change is a set of places made in one change, numbered from 1. Bells not
// making a place swap with their neighbour. An empty Change is a cross.
type Change []int

// Apply returns the row produced by applying c to row.
func (c Change) Apply(row bell.Row) bell.Row {
	made := make(map[int]bool, len(c))
	for _, p := range c {
		made[p-1] = true
	}

	next := make(bell.Row, len(row))
	copy(next, row)
	for i := 0; i < len(next); {
		if made[i] || i+1 >= len(next) || made[i+1] {
			i++
			continue
		}
		next[i], next[i+1] = next[i+1], next[i]
		i += 2
	}
	return next
}

func checkStage(stage int) error {
	if stage < 3 || stage > bell.MaxStage {
		return errors.NewMethodError("stage out of range", errors.ErrInvalidStage).WithStage(stage)
	}
	return nil
}
