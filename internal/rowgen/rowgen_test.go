package rowgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/wheatley/internal/bell"
	"github.com/Iron-Ham/wheatley/internal/errors"
)

func ringRows(g Generator, n int) []string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, g.NextRow(i%2 == 0).String())
	}
	return rows
}

func TestChange_Apply(t *testing.T) {
	tests := []struct {
		name   string
		change Change
		want   string
	}{
		{"cross", Change{}, "214365"},
		{"ends", Change{1, 6}, "132546"},
		{"lead and fourths", Change{1, 4}, "132465"},
		{"all places", Change{1, 2, 3, 4, 5, 6}, "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.change.Apply(bell.Rounds(6)).String())
		})
	}
}

func TestChange_ApplyDoesNotMutate(t *testing.T) {
	rounds := bell.Rounds(4)
	Change{}.Apply(rounds)
	assert.Equal(t, "1234", rounds.String())
}

func TestPlainHunt_EvenStage(t *testing.T) {
	g, err := NewPlainHunt(6)
	require.NoError(t, err)

	want := []string{
		"214365", "241635", "426153", "462513", "645231", "654321",
		"563412", "536142", "351624", "315264", "132546", "123456",
	}
	assert.Equal(t, want, ringRows(g, 12))
}

func TestPlainHunt_OddStage(t *testing.T) {
	g, err := NewPlainHunt(5)
	require.NoError(t, err)

	want := []string{
		"21435", "24153", "42513", "45231", "54321",
		"53412", "35142", "31524", "13254", "12345",
	}
	assert.Equal(t, want, ringRows(g, 10))
}

func TestPlainHunt_CallsIgnoredAndReset(t *testing.T) {
	g, err := NewPlainHunt(4)
	require.NoError(t, err)

	g.NextRow(true)
	g.SetBob()
	g.SetSingle()
	assert.Equal(t, "2413", g.NextRow(false).String())

	g.Reset()
	assert.Equal(t, "2143", g.NextRow(true).String())
	assert.Equal(t, 4, g.Stage())
}

func TestNewPlainHunt_InvalidStage(t *testing.T) {
	for _, stage := range []int{0, 2, bell.MaxStage + 1} {
		_, err := NewPlainHunt(stage)
		assert.ErrorIs(t, err, errors.ErrInvalidStage, "stage %d", stage)
	}
}

func TestParsePlaceNotation(t *testing.T) {
	tests := []struct {
		name     string
		stage    int
		notation string
		want     []Change
	}{
		{
			name:     "dot separated",
			stage:    5,
			notation: "3.1.5",
			want:     []Change{{3}, {1}, {5}},
		},
		{
			name:     "crosses separate changes",
			stage:    4,
			notation: "x14x12",
			want:     []Change{{}, {1, 4}, {}, {1, 2}},
		},
		{
			name:     "implicit external places",
			stage:    6,
			notation: "4.3",
			want:     []Change{{1, 4}, {3, 6}},
		},
		{
			name:     "dash is a cross",
			stage:    4,
			notation: "-14-",
			want:     []Change{{}, {1, 4}, {}},
		},
		{
			name:     "palindromic halves",
			stage:    4,
			notation: "x14,12",
			want:     []Change{{}, {1, 4}, {}, {1, 2}},
		},
		{
			name:     "named places above nine",
			stage:    12,
			notation: "x1T",
			want:     []Change{{}, {1, 12}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaceNotation(tt.stage, tt.notation)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlaceNotation_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stage    int
		notation string
		pos      int
	}{
		{"unknown character", 6, "x1y", 2},
		{"place beyond stage", 4, "x16", 1},
		{"places out of order", 6, "x41", 1},
		{"odd gap between places", 6, "13", 0},
		{"cross on odd stage", 5, "3x", 1},
		{"too many commas", 6, "x,1,2", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlaceNotation(tt.stage, tt.notation)
			require.ErrorIs(t, err, errors.ErrInvalidPlaceNotation)

			var methodErr *errors.MethodError
			require.ErrorAs(t, err, &methodErr)
			assert.Equal(t, tt.notation, methodErr.Notation)
			assert.Equal(t, tt.pos, methodErr.Position)
		})
	}
}

func TestParsePlaceNotation_Empty(t *testing.T) {
	_, err := ParsePlaceNotation(6, "")
	assert.ErrorIs(t, err, errors.ErrInvalidPlaceNotation)
}

func TestPlaceNotation_PlainBobMinor(t *testing.T) {
	g, err := NewPlaceNotation(6, "x16x16x16,12", "", "")
	require.NoError(t, err)
	require.Equal(t, 12, g.LeadLength())

	rows := ringRows(g, 12)
	assert.Equal(t, "132546", rows[10])
	assert.Equal(t, "135264", rows[11], "plain lead head")
}

func TestPlaceNotation_Calls(t *testing.T) {
	tests := []struct {
		name string
		call func(*PlaceNotation)
		want string
	}{
		{"bob", (*PlaceNotation).SetBob, "123564"},
		{"single", (*PlaceNotation).SetSingle, "132564"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewPlaceNotation(6, "x16x16x16,12", "", "")
			require.NoError(t, err)

			ringRows(g, 6)
			tt.call(g)
			assert.Equal(t, tt.name, g.Pending())

			rows := ringRows(g, 6)
			assert.Equal(t, tt.want, rows[5])
			assert.Equal(t, "plain", g.Pending(), "call is used up at the lead end")

			// The next lead is plain again.
			next := ringRows(g, 12)
			assert.NotEqual(t, tt.want, next[11])
		})
	}
}

func TestPlaceNotation_GrandsireDoubles(t *testing.T) {
	g, err := NewPlaceNotation(5, "3.1.5.1.5.1.5.1.5.1", "3", "3.123")
	require.Error(t, err, "a two-change single is rejected")

	g, err = NewPlaceNotation(5, "3.1.5.1.5.1.5.1.5.1", "3", "123")
	require.NoError(t, err)
	assert.Equal(t, "12534", ringRows(g, 10)[9])
}

func TestPlaceNotation_Reset(t *testing.T) {
	g, err := NewPlaceNotation(4, "x14,12", "", "")
	require.NoError(t, err)

	first := ringRows(g, 3)
	g.SetBob()
	g.Reset()

	assert.Equal(t, "plain", g.Pending())
	assert.Equal(t, first, ringRows(g, 3))
}
