package assessment_test

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/selim-create/kg-growth/internal/domain/assessment"
	"github.com/selim-create/kg-growth/internal/domain/classify"
	"github.com/selim-create/kg-growth/internal/domain/lms"
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/domain/reference"
	"github.com/selim-create/kg-growth/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func mustTable(mt model.MeasurementType, sex model.Sex, rows ...reference.Row) *reference.Table {
	t, err := reference.NewTable(mt, sex, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// fixtureCatalog holds a few boys rows; the interior rows are the ones
// used by the worked examples.
func fixtureCatalog() *reference.Catalog {
	c, err := reference.NewCatalog(
		mustTable(model.WeightForAge, model.SexMale,
			reference.Row{Breakpoint: 0, L: 0.3487, M: 3.3464, S: 0.14602},
			reference.Row{Breakpoint: 300, L: 0.1940, M: 9.0018, S: 0.11592},
			reference.Row{Breakpoint: 1856, L: -0.0137, M: 18.3, S: 0.12},
		),
		mustTable(model.HeightForAge, model.SexMale,
			reference.Row{Breakpoint: 0, L: 1, M: 49.8842, S: 0.03795},
			reference.Row{Breakpoint: 240, L: 1, M: 70.4782, S: 0.02607},
			reference.Row{Breakpoint: 1856, L: 1, M: 110, S: 0.04},
		),
		mustTable(model.HeadCircumferenceForAge, model.SexMale,
			reference.Row{Breakpoint: 0, L: 1, M: 34.4618, S: 0.03686},
			reference.Row{Breakpoint: 1856, L: 1, M: 50.5, S: 0.028},
		),
		mustTable(model.WeightForLength, model.SexMale,
			reference.Row{Breakpoint: 45, L: -0.3521, M: 2.441, S: 0.09182},
			reference.Row{Breakpoint: 110, L: -0.3521, M: 18.4, S: 0.08},
		),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func ptr(v float64) *float64 { return &v }

func TestEngineAssess(t *testing.T) {
	Convey("Given an engine over the fixture catalog", t, func() {
		engine, err := assessment.NewEngine(assessment.WithCatalog(fixtureCatalog()))
		So(err, ShouldBeNil)

		Convey("When assessing weight-for-age on an exact row", func() {
			res, err := engine.Assess(model.Measurement{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 300, Observed: 9.5})

			Convey("Then the LMS z-score matches the worked example", func() {
				So(err, ShouldBeNil)
				So(res.ZScore, ShouldAlmostEqual, 0.467, 1e-3)
				So(res.LMS, ShouldResemble, model.LMS{L: 0.1940, M: 9.0018, S: 0.11592})
				So(res.Percentile, ShouldAlmostEqual, lms.Percentile(res.ZScore), 1e-12)
				So(res.Category, ShouldEqual, model.CategoryNormal)
				So(res.Interpretation, ShouldEqual, "Normal weight for age")
				So(res.RedFlags, ShouldBeEmpty)
				So(res.MeasurementType, ShouldEqual, model.WeightForAge)
			})
		})

		Convey("When assessing height-for-age with L = 1", func() {
			res, err := engine.Assess(model.Measurement{Type: model.HeightForAge, Sex: model.SexMale, Breakpoint: 240, Observed: 75})

			Convey("Then the child is flagged as very tall", func() {
				So(err, ShouldBeNil)
				So(res.ZScore, ShouldAlmostEqual, 2.462, 1e-3)
				So(res.Percentile, ShouldBeGreaterThan, 97)
				So(res.Category, ShouldEqual, model.CategorySeverelyHigh)
				So(res.RedFlags, ShouldHaveLength, 1)
				So(res.RedFlags[0].Kind, ShouldEqual, model.RedFlagExcessiveHeight)
				So(res.HasCritical(), ShouldBeTrue)
			})
		})

		Convey("When assessing at the median at birth", func() {
			res, err := engine.Assess(model.Measurement{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 0, Observed: 3.3464})
			So(err, ShouldBeNil)
			So(res.ZScore, ShouldEqual, 0)
			So(res.Percentile, ShouldAlmostEqual, 50, 1e-6)
		})

		Convey("When the breakpoint lies between rows", func() {
			res, err := engine.Assess(model.Measurement{Type: model.HeadCircumferenceForAge, Sex: model.SexMale, Breakpoint: 928, Observed: 42})
			So(err, ShouldBeNil)
			So(res.LMS.M, ShouldAlmostEqual, (34.4618+50.5)/2, 1e-9)
		})

		Convey("When the breakpoint is outside the table", func() {
			_, err := engine.Assess(model.Measurement{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 1857, Observed: 18})
			So(errors.Is(err, model.ErrOutOfRange), ShouldBeTrue)
		})

		Convey("When no table is loaded for the sex", func() {
			_, err := engine.Assess(model.Measurement{Type: model.WeightForAge, Sex: model.SexFemale, Breakpoint: 300, Observed: 9})
			So(errors.Is(err, model.ErrReferenceNotFound), ShouldBeTrue)
		})

		Convey("When the input is invalid", func() {
			cases := []model.Measurement{
				{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 300, Observed: 0},
				{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 300, Observed: -2},
				{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: math.NaN(), Observed: 9},
				{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: -1, Observed: 9},
				{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 300, Observed: math.Inf(1)},
				{Type: model.WeightForLength, Sex: model.SexMale, Breakpoint: 0, Observed: 9},
				{Type: "bmi_for_age", Sex: model.SexMale, Breakpoint: 300, Observed: 9},
				{Type: model.WeightForAge, Sex: "unknown", Breakpoint: 300, Observed: 9},
			}
			for _, m := range cases {
				_, err := engine.Assess(m)
				So(errors.Is(err, model.ErrInvalidMeasurement), ShouldBeTrue)
			}
		})

		Convey("When the same input is assessed twice", func() {
			m := model.Measurement{Type: model.WeightForLength, Sex: model.SexMale, Breakpoint: 77.3, Observed: 10.1}
			a, errA := engine.Assess(m)
			b, errB := engine.Assess(m)

			Convey("Then the results are identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(reflect.DeepEqual(a, b), ShouldBeTrue)
				So(math.Float64bits(a.ZScore), ShouldEqual, math.Float64bits(b.ZScore))
			})
		})

		Convey("When many goroutines assess concurrently", func() {
			m := model.Measurement{Type: model.HeightForAge, Sex: model.SexMale, Breakpoint: 500, Observed: 80}
			want, err := engine.Assess(m)
			So(err, ShouldBeNil)

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				mismatch int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						got, err := engine.Assess(m)
						if err != nil || !reflect.DeepEqual(got, want) {
							mu.Lock()
							mismatch++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()
			So(mismatch, ShouldEqual, 0)
		})
	})

	Convey("Given an engine without a catalog", t, func() {
		engine, err := assessment.NewEngine()
		So(err, ShouldBeNil)

		Convey("Then every assessment reports a missing reference", func() {
			_, err := engine.Assess(model.Measurement{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 300, Observed: 9})
			So(errors.Is(err, model.ErrReferenceNotFound), ShouldBeTrue)
		})
	})

	Convey("Given invalid thresholds", t, func() {
		_, err := assessment.NewEngine(assessment.WithThresholds(classify.Thresholds{SeverelyLow: 50, Low: 15, High: 85, SeverelyHigh: 97}))
		So(errors.Is(err, classify.ErrInvalidThresholds), ShouldBeTrue)
	})

	Convey("Given an extreme weight", t, func() {
		m := model.Measurement{Type: model.WeightForLength, Sex: model.SexMale, Breakpoint: 45, Observed: 4.2}
		plain, _ := assessment.NewEngine(assessment.WithCatalog(fixtureCatalog()), assessment.WithExtendedZ(false))
		extended, _ := assessment.NewEngine(assessment.WithCatalog(fixtureCatalog()), assessment.WithExtendedZ(true))

		Convey("Then the WHO adjustment changes the z-score beyond 3", func() {
			p, err := plain.Assess(m)
			So(err, ShouldBeNil)
			e, err := extended.Assess(m)
			So(err, ShouldBeNil)
			So(p.ZScore, ShouldBeGreaterThan, 3)
			So(e.ZScore, ShouldBeGreaterThan, 3)
			So(e.ZScore, ShouldNotAlmostEqual, p.ZScore, 1e-6)
			So(e.Category, ShouldEqual, model.CategorySeverelyHigh)
		})
	})

	Convey("Given a warning policy", t, func() {
		policy := classify.DefaultPolicy()
		policy.WarningEnabled = true
		engine, err := assessment.NewEngine(assessment.WithCatalog(fixtureCatalog()), assessment.WithPolicy(policy))
		So(err, ShouldBeNil)

		Convey("Then a 4th percentile height raises a warning", func() {
			// z for the 4th percentile at the 240-day row
			obs := lms.SDValue(model.LMS{L: 1, M: 70.4782, S: 0.02607}, -1.75)
			res, err := engine.Assess(model.Measurement{Type: model.HeightForAge, Sex: model.SexMale, Breakpoint: 240, Observed: obs})
			So(err, ShouldBeNil)
			So(res.Percentile, ShouldBeBetween, 3, 5)
			So(res.Category, ShouldEqual, model.CategoryLow)
			So(res.RedFlags, ShouldHaveLength, 1)
			So(res.RedFlags[0].Severity, ShouldEqual, model.SeverityWarning)
		})
	})

	Convey("Given an engine reading from a registry", t, func() {
		reg := reference.NewRegistry(fixtureCatalog())
		engine, err := assessment.NewEngine(assessment.WithCatalog(reg))
		So(err, ShouldBeNil)
		m := model.Measurement{Type: model.WeightForAge, Sex: model.SexMale, Breakpoint: 300, Observed: 9.5}

		_, err = engine.Assess(m)
		So(err, ShouldBeNil)

		Convey("When the registry swaps in an empty catalog", func() {
			empty, _ := reference.NewCatalog()
			reg.Swap(empty)

			Convey("Then the next assessment sees it", func() {
				_, err := engine.Assess(m)
				So(errors.Is(err, model.ErrReferenceNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestEngineAssessAll(t *testing.T) {
	Convey("Given an engine over the fixture catalog", t, func() {
		engine, err := assessment.NewEngine(assessment.WithCatalog(fixtureCatalog()))
		So(err, ShouldBeNil)

		Convey("When a visit has a valid weight and a negative height", func() {
			out := engine.AssessAll(model.Visit{AgeDays: 300, Sex: model.SexMale, WeightKg: ptr(9.5), HeightCm: ptr(-70)})

			Convey("Then weight-for-age succeeds and height-for-age fails alone", func() {
				wfa, ok := out.Slot(model.WeightForAge)
				So(ok, ShouldBeTrue)
				So(wfa.Err, ShouldBeNil)
				So(wfa.Result.ZScore, ShouldAlmostEqual, 0.467, 1e-3)

				hfa, ok := out.Slot(model.HeightForAge)
				So(ok, ShouldBeTrue)
				So(hfa.Result, ShouldBeNil)
				So(errors.Is(hfa.Err, model.ErrInvalidMeasurement), ShouldBeTrue)

				So(out.Results(), ShouldHaveLength, 1)
			})
		})

		Convey("When every measurement is supplied", func() {
			out := engine.AssessAll(model.Visit{AgeDays: 300, Sex: model.SexMale, WeightKg: ptr(9.5), HeightCm: ptr(73), HeadCircumferenceCm: ptr(45)})

			Convey("Then slots come in fixed order including weight-for-length", func() {
				So(out.Slots, ShouldHaveLength, 4)
				So(out.Slots[0].MeasurementType, ShouldEqual, model.WeightForAge)
				So(out.Slots[1].MeasurementType, ShouldEqual, model.HeightForAge)
				So(out.Slots[2].MeasurementType, ShouldEqual, model.HeadCircumferenceForAge)
				So(out.Slots[3].MeasurementType, ShouldEqual, model.WeightForLength)
				So(out.Failed(), ShouldEqual, 0)
				So(out.Slots[3].Result.Breakpoint, ShouldEqual, 73)
				So(out.Slots[3].Result.Observed, ShouldEqual, 9.5)
			})
		})

		Convey("When only head circumference is supplied", func() {
			out := engine.AssessAll(model.Visit{AgeDays: 300, Sex: model.SexMale, HeadCircumferenceCm: ptr(45)})
			So(out.Slots, ShouldHaveLength, 1)
			So(out.Slots[0].MeasurementType, ShouldEqual, model.HeadCircumferenceForAge)
		})

		Convey("When nothing is supplied", func() {
			out := engine.AssessAll(model.Visit{AgeDays: 300, Sex: model.SexMale})
			So(out.Slots, ShouldBeEmpty)
			So(out.Results(), ShouldBeEmpty)
		})

		Convey("When the age is outside the tables", func() {
			out := engine.AssessAll(model.Visit{AgeDays: 4000, Sex: model.SexMale, WeightKg: ptr(20), HeightCm: ptr(100)})

			Convey("Then age slots fail but weight-for-length still succeeds", func() {
				So(out.Failed(), ShouldEqual, 2)
				wfl, _ := out.Slot(model.WeightForLength)
				So(wfl.Err, ShouldBeNil)
			})
		})
	})

	Convey("Given weight-for-length disabled", t, func() {
		engine, err := assessment.NewEngine(assessment.WithCatalog(fixtureCatalog()), assessment.WithWeightForLength(false))
		So(err, ShouldBeNil)
		out := engine.AssessAll(model.Visit{AgeDays: 300, Sex: model.SexMale, WeightKg: ptr(9.5), HeightCm: ptr(73)})
		So(out.Slots, ShouldHaveLength, 2)
		_, ok := out.Slot(model.WeightForLength)
		So(ok, ShouldBeFalse)
	})
}
