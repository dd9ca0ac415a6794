package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/selim-create/kg-growth/internal/adapters/refdata"
	"github.com/selim-create/kg-growth/internal/domain/model"
	"github.com/selim-create/kg-growth/internal/probe"
)

const testdata = "../../internal/adapters/refdata/testdata/who"

func runApp(args ...string) (string, error) {
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"growthctl"}, args...))
	return out.String(), err
}

func TestAssess(t *testing.T) {
	convey.Convey("Given the bundled test tables", t, func() {
		convey.Convey("When assessing a newborn boy's weight", func() {
			out, err := runApp("assess", "--refdata", testdata,
				"--type", "wfa", "--sex", "boys", "--at", "0", "--observed", "3.3464")

			convey.Convey("Then the median is reported as the 50th percentile", func() {
				convey.So(err, convey.ShouldBeNil)
				var res model.AssessmentResult
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.MeasurementType, convey.ShouldEqual, model.WeightForAge)
				convey.So(res.ZScore, convey.ShouldAlmostEqual, 0, 1e-9)
				convey.So(res.Percentile, convey.ShouldAlmostEqual, 50, 1e-9)
				convey.So(res.Category, convey.ShouldEqual, model.CategoryNormal)
			})
		})

		convey.Convey("When the table is missing", func() {
			_, err := runApp("assess", "--refdata", testdata,
				"--type", "hcfa", "--sex", "female", "--at", "10", "--observed", "35")
			convey.So(errors.Is(err, model.ErrReferenceNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When the measurement type is unknown", func() {
			_, err := runApp("assess", "--refdata", testdata,
				"--type", "bmi", "--sex", "female", "--at", "10", "--observed", "35")
			convey.So(errors.Is(err, model.ErrInvalidMeasurement), convey.ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given the bundled test tables", t, func() {
		convey.Convey("When validating as JSON", func() {
			out, err := runApp("validate", "--refdata", testdata, "--json")

			convey.Convey("Then every table is listed", func() {
				convey.So(err, convey.ShouldBeNil)
				var tables []map[string]interface{}
				convey.So(json.Unmarshal([]byte(out), &tables), convey.ShouldBeNil)
				convey.So(tables, convey.ShouldHaveLength, 3)
			})
		})

		convey.Convey("When validating as a table", func() {
			out, err := runApp("validate", "--refdata", testdata)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "TYPE")
			convey.So(out, convey.ShouldContainSubstring, "3 tables")
		})

		convey.Convey("When the directory is empty", func() {
			_, err := runApp("validate", "--refdata", t.TempDir())
			convey.So(errors.Is(err, refdata.ErrNoTables), convey.ShouldBeTrue)
		})
	})
}

func TestProbeCommand(t *testing.T) {
	convey.Convey("Given a service that records nothing", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /reference", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"tables":[{"measurement_type":"weight_for_age","sex":"male","axis":"age_days","min":0,"max":10}]}`))
		})
		mux.HandleFunc("POST /visits", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"results":[],"recorded":false,"duplicate":false}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		convey.Convey("Then the probe prints its stats", func() {
			out, err := runApp("probe", "--url", srv.URL, "--visits", "4", "--children", "2", "--duplicates", "0")
			convey.So(err, convey.ShouldBeNil)
			var stats probe.Stats
			convey.So(json.Unmarshal([]byte(out), &stats), convey.ShouldBeNil)
			convey.So(stats.VisitsSubmitted, convey.ShouldEqual, 4)
		})
	})
}
