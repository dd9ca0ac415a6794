package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the growth namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.assessments.WithLabelValues("weight_for_age", "normal").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "growth_assessment_assessments_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.batchVisits.Inc()

			Convey("Then the names and constant labels follow the options", func() {
				expected := `
# HELP test_unit_batch_visits_total Visits assessed as a batch
# TYPE test_unit_batch_visits_total counter
test_unit_batch_visits_total{env="test"} 1
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_batch_visits_total"), ShouldBeNil)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording assessments", func() {
			before := testutil.ToFloat64(globalManager.assessments.WithLabelValues("height_for_age", "low"))
			RecordAssessment("height_for_age", "low")
			RecordAssessmentError("height_for_age", "out_of_range")
			RecordRedFlag("height_for_age", "stunting", "critical")
			ObserveZScore("height_for_age", -3.2)
			RecordAssessmentLatency(15 * time.Microsecond)
			RecordBatchVisit()

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.assessments.WithLabelValues("height_for_age", "low")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.redFlags.WithLabelValues("height_for_age", "stunting", "critical")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating the catalog gauges", func() {
			UpdateCatalogTables(8)
			UpdateCatalogRows(14000)
			UpdateCatalogLastReload(1700000000)
			RecordCatalogReload("success")

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.catalogTables), ShouldEqual, 8)
				So(testutil.ToFloat64(globalManager.catalogRows), ShouldEqual, 14000)
				So(testutil.ToFloat64(globalManager.catalogLastReload), ShouldEqual, 1700000000)
			})
		})

		Convey("When recording history, queue and worker activity", func() {
			So(func() {
				RecordHistoryWrite("success")
				RecordHistoryDuplicate()
				RecordHistoryWriteLatency(1.5)
				RecordHistoryQueryLatency(0.7)
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(2)
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
		})

		Convey("When recording HTTP, error and system metrics", func() {
			So(func() {
				RecordHTTPRequest("/assessments", "POST", "200")
				RecordHTTPRequestDuration("/assessments", "POST", "200", 3.2)
				RecordErrorByComponent("api", "invalid_measurement")
				RecordErrorByEndpoint("/assessments", "POST", "invalid_measurement")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
