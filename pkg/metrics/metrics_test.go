package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register collectors under the drill namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.runsAborted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "drill_core_runs_aborted_total" {
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
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels should follow the options", func() {
				manager.rotations.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
					if f.GetName() == "test_unit_rotations_total" {
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_unit_rotations_total")
			})
		})

		Convey("When empty values are passed to options", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "drill")
				So(manager.subsystem, ShouldEqual, "core")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsQueued)
			RecordEventQueued()
			RecordEventQueued()

			Convey("Then counters should move", func() {
				So(testutil.ToFloat64(globalManager.eventsQueued), ShouldEqual, before+2)
			})
		})

		Convey("When toggling the online gauge", func() {
			UpdatePipelineOnline(true)
			So(testutil.ToFloat64(globalManager.pipelineOnline), ShouldEqual, 1)
			UpdatePipelineOnline(false)
			So(testutil.ToFloat64(globalManager.pipelineOnline), ShouldEqual, 0)
		})

		Convey("When updating the pending gauge", func() {
			UpdatePendingEvents(7)
			So(testutil.ToFloat64(globalManager.pendingEvents), ShouldEqual, 7)
		})

		Convey("When recording labelled metrics", func() {
			So(func() {
				RecordEventEmitted("RUN_STARTED")
				RecordEventPersisted("RUN_STARTED")
				RecordEventFlushed()
				RecordEventDuplicate()
				RecordEventDropped()
				RecordSoftAck()
				RecordPersistError("unavailable")
				RecordPersistLatency(3.5)
				RecordHealthCheck("ok")
				RecordSubscriberError("ANSWER_SUBMITTED")
				RecordRunStarted("standard")
				RecordRunCompleted("pass")
				RecordRunAborted()
				RecordAnswer("FAST", true, 1200)
				RecordLeakDetected("PASSIVE_PLAY")
				RecordRotation(7)
				RecordHTTPRequest("/runs", "POST", "200")
				RecordHTTPRequestDuration("/runs", "POST", "200", 4)
			}, ShouldNotPanic)

			Convey("Then per-label series should be exposed", func() {
				So(testutil.ToFloat64(globalManager.answers.WithLabelValues("FAST", "true")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.catalogItems), ShouldEqual, 7)
			})
		})

		Convey("When fetching the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
