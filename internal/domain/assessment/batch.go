package assessment

import (
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/pkg/metrics"
)

// Slot is the outcome for one measurement type of a visit. Exactly one of
// Result and Err is set.
type Slot struct {
	MeasurementType model.MeasurementType
	Result          *model.AssessmentResult
	Err             error
}

// BatchResult holds the slots of a visit in fixed order: weight-for-age,
// height-for-age, head-circumference-for-age, weight-for-length.
type BatchResult struct {
	Slots []Slot
}

// Results returns the successful results in slot order.
func (b BatchResult) Results() []model.AssessmentResult {
	out := make([]model.AssessmentResult, 0, len(b.Slots))
	for _, s := range b.Slots {
		if s.Result != nil {
			out = append(out, *s.Result)
		}
	}
	return out
}

// Failed returns how many slots carry an error.
func (b BatchResult) Failed() int {
	n := 0
	for _, s := range b.Slots {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Slot returns the slot for mt, if the visit produced one.
func (b BatchResult) Slot(mt model.MeasurementType) (Slot, bool) {
	for _, s := range b.Slots {
		if s.MeasurementType == mt {
			return s, true
		}
	}
	return Slot{}, false
}

// AssessAll assesses every measurement supplied in v. A failing measurement
// is reported on its own slot and never affects the others.
func (e *Engine) AssessAll(v model.Visit) BatchResult {
	metrics.RecordBatchVisit()

	ms := make([]model.Measurement, 0, 4)
	if v.WeightKg != nil {
		ms = append(ms, model.Measurement{Type: model.WeightForAge, Sex: v.Sex, Breakpoint: v.AgeDays, Observed: *v.WeightKg})
	}
	if v.HeightCm != nil {
		ms = append(ms, model.Measurement{Type: model.HeightForAge, Sex: v.Sex, Breakpoint: v.AgeDays, Observed: *v.HeightCm})
	}
	if v.HeadCircumferenceCm != nil {
		ms = append(ms, model.Measurement{Type: model.HeadCircumferenceForAge, Sex: v.Sex, Breakpoint: v.AgeDays, Observed: *v.HeadCircumferenceCm})
	}
	if e.includeWFL && v.WeightKg != nil && v.HeightCm != nil {
		ms = append(ms, model.Measurement{Type: model.WeightForLength, Sex: v.Sex, Breakpoint: *v.HeightCm, Observed: *v.WeightKg})
	}

	out := BatchResult{Slots: make([]Slot, 0, len(ms))}
	for _, m := range ms {
		slot := Slot{MeasurementType: m.Type}
		res, err := e.Assess(m)
		if err != nil {
			slot.Err = err
		} else {
			slot.Result = &res
		}
		out.Slots = append(out.Slots, slot)
	}
	return out
}
