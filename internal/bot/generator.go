package bot

import (
	"github.com/Iron-Ham/wheatley/internal/errors"
	"github.com/Iron-Ham/wheatley/internal/rowgen"
)

// GeneratorFunc supplies the row generator for the tower's stage each time
// the band goes into changes. The generator it returns must be at its first
// row.
type GeneratorFunc func(stage int) (rowgen.Generator, error)

// PlainHunt builds a fresh plain hunt on whatever stage the tower has.
func PlainHunt() GeneratorFunc {
	return func(stage int) (rowgen.Generator, error) {
		return rowgen.NewPlainHunt(stage)
	}
}

// Fixed reuses g, which only rings on its own stage.
func Fixed(g rowgen.Generator) GeneratorFunc {
	return func(stage int) (rowgen.Generator, error) {
		if stage != g.Stage() {
			return nil, errors.NewMethodError("cannot ring method in this tower", errors.ErrStageMismatch).
				WithStage(g.Stage())
		}
		g.Reset()
		return g, nil
	}
}
