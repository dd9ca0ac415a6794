package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/selim-create/kg-growth/internal/domain/model"
)

// Record is one stored assessment of a child's visit.
type Record struct {
	ID              uuid.UUID             `json:"id"`
	ChildID         string                `json:"child_id"`
	VisitID         string                `json:"visit_id,omitempty"`
	Seq             int                   `json:"-"` // position of the result within its visit
	MeasuredAt      time.Time             `json:"measured_at"`
	MeasurementType model.MeasurementType `json:"measurement_type"`
	Sex             model.Sex             `json:"sex"`
	Breakpoint      float64               `json:"breakpoint"`
	Observed        float64               `json:"observed"`
	ZScore          float64               `json:"z_score"`
	Percentile      float64               `json:"percentile"`
	Category        model.Category        `json:"category"`
	RedFlags        []model.RedFlag       `json:"red_flags"`
}

// RecordsFromEvent expands a visit event into one record per result.
func RecordsFromEvent(ev model.HistoryEvent) []Record {
	out := make([]Record, 0, len(ev.Results))
	for i, r := range ev.Results {
		flags := r.RedFlags
		if flags == nil {
			flags = []model.RedFlag{}
		}
		out = append(out, Record{
			ID:              uuid.New(),
			ChildID:         ev.ChildID,
			VisitID:         ev.VisitID,
			Seq:             i,
			MeasuredAt:      ev.MeasuredAt.UTC(),
			MeasurementType: r.MeasurementType,
			Sex:             ev.Sex,
			Breakpoint:      r.Breakpoint,
			Observed:        r.Observed,
			ZScore:          r.ZScore,
			Percentile:      r.Percentile,
			Category:        r.Category,
			RedFlags:        flags,
		})
	}
	return out
}

// Validate checks the fields every store relies on.
func (r Record) Validate() error {
	switch {
	case r.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case strings.TrimSpace(r.ChildID) == "":
		return fmt.Errorf("%w: missing child id", ErrInvalidRecord)
	case r.MeasuredAt.IsZero():
		return fmt.Errorf("%w: missing measured_at", ErrInvalidRecord)
	case !r.MeasurementType.Valid():
		return fmt.Errorf("%w: measurement type %q", ErrInvalidRecord, r.MeasurementType)
	case !r.Sex.Valid():
		return fmt.Errorf("%w: sex %q", ErrInvalidRecord, r.Sex)
	}
	return nil
}

// newerFirst orders records by measurement time descending, then by their
// position within the visit.
func newerFirst(a, b Record) bool {
	if !a.MeasuredAt.Equal(b.MeasuredAt) {
		return a.MeasuredAt.After(b.MeasuredAt)
	}
	if a.VisitID != b.VisitID {
		return a.VisitID < b.VisitID
	}
	return a.Seq < b.Seq
}
