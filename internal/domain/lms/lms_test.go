package lms_test

import (
	"errors"
	"math"
	"testing"

	"github.com/selim-create/kg-growth/internal/domain/lms"
	"github.com/selim-create/kg-growth/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestZScore(t *testing.T) {
	Convey("Given LMS parameters", t, func() {
		Convey("When L is not zero", func() {
			z, err := lms.ZScore(9.5, model.LMS{L: 0.1940, M: 9.0018, S: 0.11592})
			So(err, ShouldBeNil)
			So(z, ShouldAlmostEqual, 0.467, 1e-3)
		})

		Convey("When L is one", func() {
			z, err := lms.ZScore(75.0, model.LMS{L: 1, M: 70.4782, S: 0.02607})
			So(err, ShouldBeNil)
			So(z, ShouldAlmostEqual, 2.462, 1e-3)
		})

		Convey("When L is zero", func() {
			p := model.LMS{L: 0, M: 10, S: 0.1}
			z, err := lms.ZScore(10*math.E, p)
			So(err, ShouldBeNil)
			So(z, ShouldAlmostEqual, 10, 1e-9)
		})

		Convey("When the value equals the median", func() {
			z, err := lms.ZScore(3.3464, model.LMS{L: 0.3487, M: 3.3464, S: 0.14602})
			So(err, ShouldBeNil)
			So(z, ShouldEqual, 0)
		})

		Convey("When L tends to zero the transform is continuous", func() {
			near, _ := lms.ZScore(12, model.LMS{L: 1e-9, M: 10, S: 0.1})
			at, _ := lms.ZScore(12, model.LMS{L: 0, M: 10, S: 0.1})
			So(near, ShouldAlmostEqual, at, 1e-6)
		})

		Convey("When the value is not positive or not finite", func() {
			p := model.LMS{L: 1, M: 10, S: 0.1}
			for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
				_, err := lms.ZScore(v, p)
				So(errors.Is(err, model.ErrInvalidMeasurement), ShouldBeTrue)
			}
		})
	})
}

func TestExtendedZScore(t *testing.T) {
	Convey("Given a skewed weight distribution", t, func() {
		p := model.LMS{L: -0.3521, M: 10.2, S: 0.11}

		Convey("When |z| is within 3 the plain transform is used", func() {
			plain, _ := lms.ZScore(11, p)
			ext, err := lms.ExtendedZScore(11, p)
			So(err, ShouldBeNil)
			So(ext, ShouldEqual, plain)
		})

		Convey("When the value lies on the SD3 curve the result is 3", func() {
			ext, err := lms.ExtendedZScore(lms.SDValue(p, 3), p)
			So(err, ShouldBeNil)
			So(ext, ShouldAlmostEqual, 3, 1e-9)
		})

		Convey("When the value is far above SD3", func() {
			sd2, sd3 := lms.SDValue(p, 2), lms.SDValue(p, 3)
			v := sd3 + (sd3 - sd2)
			ext, err := lms.ExtendedZScore(v, p)

			Convey("Then it is measured in SD3-SD2 steps", func() {
				So(err, ShouldBeNil)
				So(ext, ShouldAlmostEqual, 4, 1e-9)
			})
		})

		Convey("When the value is far below SD-3", func() {
			sdm2, sdm3 := lms.SDValue(p, -2), lms.SDValue(p, -3)
			v := sdm3 - (sdm2 - sdm3)
			ext, err := lms.ExtendedZScore(v, p)
			So(err, ShouldBeNil)
			So(ext, ShouldAlmostEqual, -4, 1e-9)
		})
	})

	Convey("Given a symmetric distribution (L = 1)", t, func() {
		p := model.LMS{L: 1, M: 70, S: 0.03}

		Convey("Then the adjustment is the identity", func() {
			for _, v := range []float64{55, 60, 80, 85} {
				plain, _ := lms.ZScore(v, p)
				ext, _ := lms.ExtendedZScore(v, p)
				So(ext, ShouldAlmostEqual, plain, 1e-9)
			}
		})
	})
}

func TestSDValue(t *testing.T) {
	Convey("Given LMS parameters", t, func() {
		for _, p := range []model.LMS{{L: 0.3, M: 8, S: 0.12}, {L: 0, M: 8, S: 0.12}, {L: -1.2, M: 8, S: 0.12}} {
			Convey("Then SDValue inverts ZScore for L="+formatL(p.L), func() {
				for _, z := range []float64{-2.5, -1, 0, 1.5, 2.9} {
					back, err := lms.ZScore(lms.SDValue(p, z), p)
					So(err, ShouldBeNil)
					So(back, ShouldAlmostEqual, z, 1e-9)
				}
			})
		}
	})
}

func formatL(l float64) string {
	switch {
	case l > 0:
		return "positive"
	case l < 0:
		return "negative"
	default:
		return "zero"
	}
}

func TestPercentile(t *testing.T) {
	Convey("Given the normal CDF", t, func() {
		Convey("Then z=0 maps to the 50th percentile", func() {
			So(lms.Percentile(0), ShouldAlmostEqual, 50.0, 1e-6)
			So(lms.NormalCDF(0), ShouldEqual, 0.5)
		})

		Convey("Then known quantiles are accurate to 1e-7", func() {
			So(lms.NormalCDF(1.96), ShouldAlmostEqual, 0.9750021048517795, 1e-7)
			So(lms.NormalCDF(-1), ShouldAlmostEqual, 0.15865525393145707, 1e-7)
			So(lms.NormalCDF(3), ShouldAlmostEqual, 0.9986501019683699, 1e-7)
			So(lms.NormalCDF(-3), ShouldAlmostEqual, 0.0013498980316301, 1e-7)
		})

		Convey("Then it is strictly monotonic", func() {
			prev := lms.Percentile(-6)
			for z := -5.99; z <= 6; z += 0.01 {
				cur := lms.Percentile(z)
				So(cur, ShouldBeGreaterThan, prev)
				prev = cur
			}
		})

		Convey("Then it is symmetric", func() {
			for _, z := range []float64{0.25, 1, 1.88, 2.75} {
				So(lms.Percentile(z)+lms.Percentile(-z), ShouldAlmostEqual, 100, 1e-9)
			}
		})

		Convey("Then it stays within [0, 100]", func() {
			So(lms.Percentile(-40), ShouldBeGreaterThanOrEqualTo, 0)
			So(lms.Percentile(40), ShouldBeLessThanOrEqualTo, 100)
		})
	})
}
