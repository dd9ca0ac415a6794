// Package reference holds the immutable WHO LMS reference tables, the catalog
// that resolves them per indicator and sex, and the interpolation over a table.
//
// Tables and catalogs are never mutated after construction; they are safe to
// share across goroutines without locking. Hot reload replaces the whole
// catalog through Registry.
package reference

import (
	"fmt"
	"math"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// Row is one line of a WHO LMS table.
type Row struct {
	Breakpoint float64 `json:"breakpoint"`
	L          float64 `json:"l"`
	M          float64 `json:"m"`
	S          float64 `json:"s"`
}

// LMS returns the row's parameters.
func (r Row) LMS() model.LMS { return model.LMS{L: r.L, M: r.M, S: r.S} }

// Table is a sorted, validated set of rows for one indicator and sex.
type Table struct {
	measurementType model.MeasurementType
	sex             model.Sex
	rows            []Row
}

// NewTable validates rows and returns an immutable table. Rows must already be
// ordered by strictly increasing breakpoint; M and S must be positive.
func NewTable(mt model.MeasurementType, sex model.Sex, rows []Row) (*Table, error) {
	if !mt.Valid() {
		return nil, fmt.Errorf("%w: unknown measurement type %q", model.ErrMalformedReferenceData, mt)
	}
	if !sex.Valid() {
		return nil, fmt.Errorf("%w: unknown sex %q", model.ErrMalformedReferenceData, sex)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s/%s has no rows", model.ErrMalformedReferenceData, mt, sex)
	}
	for i, r := range rows {
		if !finite(r.Breakpoint) || !finite(r.L) || !finite(r.M) || !finite(r.S) {
			return nil, fmt.Errorf("%w: %s/%s row %d has a non-finite value", model.ErrMalformedReferenceData, mt, sex, i)
		}
		if r.M <= 0 || r.S <= 0 {
			return nil, fmt.Errorf("%w: %s/%s row %d (breakpoint %g) has non-positive M or S", model.ErrMalformedReferenceData, mt, sex, i, r.Breakpoint)
		}
		if i > 0 && r.Breakpoint <= rows[i-1].Breakpoint {
			return nil, fmt.Errorf("%w: %s/%s breakpoints not strictly increasing at row %d (%g after %g)",
				model.ErrMalformedReferenceData, mt, sex, i, r.Breakpoint, rows[i-1].Breakpoint)
		}
	}
	cp := make([]Row, len(rows))
	copy(cp, rows)
	return &Table{measurementType: mt, sex: sex, rows: cp}, nil
}

// MeasurementType returns the indicator the table describes.
func (t *Table) MeasurementType() model.MeasurementType { return t.measurementType }

// Sex returns the sex the table describes.
func (t *Table) Sex() model.Sex { return t.sex }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns a copy of the rows.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Range returns the first and last breakpoint covered by the table.
func (t *Table) Range() (minBreakpoint, maxBreakpoint float64) {
	return t.rows[0].Breakpoint, t.rows[len(t.rows)-1].Breakpoint
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
