package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager, err := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register its collectors there", func() {
				So(err, ShouldBeNil)
				So(manager, ShouldNotBeNil)
				manager.viewRenders.WithLabelValues("home", "ok").Inc()
				So(testutil.CollectAndCount(manager.viewRenders), ShouldEqual, 1)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager, err := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			So(err, ShouldBeNil)
			manager.templatesLoaded.Set(3)

			Convey("Then metric names should carry the namespace and subsystem", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_namespace_test_subsystem_templates_loaded")
			})
		})

		Convey("When ignoring empty option values", func() {
			manager, err := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(err, ShouldBeNil)
				So(manager.namespace, ShouldEqual, "homeview")
				So(manager.subsystem, ShouldEqual, "web")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording view renders", func() {
			before := testutil.ToFloat64(globalManager.viewRenders.WithLabelValues("home", "ok"))
			RecordViewRender("home", "ok")
			RecordViewRender("home", "ok")

			Convey("Then the counter should advance", func() {
				after := testutil.ToFloat64(globalManager.viewRenders.WithLabelValues("home", "ok"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When setting gauges", func() {
			UpdateTemplatesLoaded(4)
			UpdateLiveReloadClients(2)

			Convey("Then they should reflect the last value", func() {
				So(testutil.ToFloat64(globalManager.templatesLoaded), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.liveReloadClients), ShouldEqual, 2)
			})
		})

		Convey("When recording HTTP and latency metrics", func() {
			So(func() {
				RecordHTTPRequest("home", "GET", "200")
				RecordHTTPRequestDuration("home", "GET", "200", 1.5)
				RecordErrorByEndpoint("home", "GET", "server_error")
				RecordViewRenderLatency("home", 0.4)
				RecordTemplateReload("ok")
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then it should include runtime and service metrics", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRegistration(t *testing.T) {
	Convey("Given a registry that already holds the service metrics", t, func() {
		registry := prometheus.NewRegistry()
		first, err := NewManager(WithPrometheusRegistry(registry))
		So(err, ShouldBeNil)

		Convey("When a second manager with the same names registers there", func() {
			_, err := NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration should fail instead of panicking", func() {
				So(errors.Is(err, ErrRegister), ShouldBeTrue)
				var already prometheus.AlreadyRegisteredError
				So(errors.As(err, &already), ShouldBeTrue)
			})
		})

		Convey("When the same manager is registered with a fresh registry", func() {
			Convey("Then every collector should be accepted", func() {
				So(first.Register(prometheus.NewRegistry()), ShouldBeNil)
			})
		})

		Convey("When a manager under another namespace shares the registry", func() {
			_, err := NewManager(WithNamespace("other"), WithPrometheusRegistry(registry))

			Convey("Then its metrics should not collide", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
