package probe

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/selim-create/kg-growth/internal/domain/classify"
	"github.com/selim-create/kg-growth/internal/domain/lms"
	"github.com/selim-create/kg-growth/internal/domain/model"
)

// percentileTolerance absorbs JSON float round-tripping.
const percentileTolerance = 1e-6

// verifier checks assessments against the classification rules the service
// is expected to run with.
type verifier struct {
	thresholds classify.Thresholds
	detector   *classify.Detector
}

func newVerifier(t classify.Thresholds, p classify.Policy) (*verifier, error) {
	d, err := classify.NewDetector(t, p)
	if err != nil {
		return nil, err
	}
	return &verifier{thresholds: t, detector: d}, nil
}

// check returns the rules result breaks, labelled with the visit it came from.
func (v *verifier) check(childID, visitID string, result gjson.Result) []Violation {
	mt := result.Get("measurement_type").String()
	p := result.Get("percentile").Float()
	z := result.Get("z_score").Float()

	var out []Violation
	fail := func(rule, format string, args ...interface{}) {
		out = append(out, Violation{
			ChildID:         childID,
			VisitID:         visitID,
			MeasurementType: mt,
			Rule:            rule,
			Detail:          fmt.Sprintf(format, args...),
		})
	}

	if p < 0 || p > 100 || math.IsNaN(p) {
		fail(RulePercentileRange, "percentile %g outside [0, 100]", p)
	}
	if want := lms.Percentile(z); math.Abs(want-p) > percentileTolerance {
		fail(RuleZPercentile, "z %g implies percentile %g, got %g", z, want, p)
	}
	if want, got := v.thresholds.Category(p), result.Get("category").String(); string(want) != got {
		fail(RuleCategory, "percentile %g should be %s, got %s", p, want, got)
	}

	want := v.detector.Detect(p, model.MeasurementType(mt))
	got := result.Get("red_flags").Array()
	switch {
	case len(want) != len(got):
		fail(RuleRedFlag, "percentile %g expects %d flags, got %d", p, len(want), len(got))
	case len(want) == 1:
		kind, sev := got[0].Get("kind").String(), got[0].Get("severity").String()
		if kind != string(want[0].Kind) || sev != string(want[0].Severity) {
			fail(RuleRedFlag, "percentile %g expects %s/%s, got %s/%s", p, want[0].Kind, want[0].Severity, kind, sev)
		}
	}

	critical := p < v.thresholds.SeverelyLow || p > v.thresholds.SeverelyHigh
	hasCritical := false
	for _, f := range got {
		if f.Get("severity").String() == string(model.SeverityCritical) {
			hasCritical = true
		}
	}
	if critical != hasCritical {
		fail(RuleRedFlag, "percentile %g critical=%t but critical flag present=%t", p, critical, hasCritical)
	}
	return out
}
