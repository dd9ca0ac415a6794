package reference

import (
	"fmt"
	"math"
	"sort"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// Interpolate returns the LMS triplet at breakpoint x. An exact row match is
// returned verbatim; otherwise L, M and S are linearly interpolated between the
// bracketing rows. Breakpoints outside the table are rejected, never clamped.
func Interpolate(t *Table, x float64) (model.LMS, error) {
	if t == nil || len(t.rows) == 0 {
		return model.LMS{}, fmt.Errorf("%w: empty table", model.ErrReferenceNotFound)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return model.LMS{}, fmt.Errorf("%w: breakpoint %v is not finite", model.ErrInvalidMeasurement, x)
	}
	lo, hi := t.Range()
	if x < lo || x > hi {
		return model.LMS{}, fmt.Errorf("%w: %s/%s breakpoint %g outside [%g, %g]",
			model.ErrOutOfRange, t.measurementType, t.sex, x, lo, hi)
	}

	// First row whose breakpoint is >= x.
	i := sort.Search(len(t.rows), func(i int) bool { return t.rows[i].Breakpoint >= x })
	upper := t.rows[i]
	if upper.Breakpoint == x {
		return upper.LMS(), nil
	}
	lower := t.rows[i-1]

	f := (x - lower.Breakpoint) / (upper.Breakpoint - lower.Breakpoint)
	return model.LMS{
		L: lerp(lower.L, upper.L, f),
		M: lerp(lower.M, upper.M, f),
		S: lerp(lower.S, upper.S, f),
	}, nil
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }
