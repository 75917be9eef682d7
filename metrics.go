package agata

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMetricsNamespace prefixes every broker metric.
const DefaultMetricsNamespace = "agata"

// metrics holds the Prometheus collectors of one broker. A nil *metrics
// records nothing.
type metrics struct {
	starts        *prometheus.CounterVec
	stops         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	startDuration *prometheus.HistogramVec

	singletonsLoaded prometheus.Gauge
	servicesRunning  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, namespace, brokerID string) *metrics {
	if reg == nil {
		return nil
	}

	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	labels := prometheus.Labels{"broker": brokerID}
	factory := promauto.With(reg)

	return &metrics{
		starts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "unit_starts_total",
				Help:        "Total number of successfully started units",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		stops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "unit_stops_total",
				Help:        "Total number of stopped units",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "unit_failures_total",
				Help:        "Total number of failed unit operations",
				ConstLabels: labels,
			},
			[]string{"kind", "operation"},
		),
		startDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "unit_start_duration_seconds",
				Help:        "Time spent in unit constructors",
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		singletonsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "singletons_loaded",
				Help:        "Number of singletons currently loaded",
				ConstLabels: labels,
			},
		),
		servicesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "services_running",
				Help:        "Number of services currently running",
				ConstLabels: labels,
			},
		),
	}
}

func (m *metrics) started(kind string, d time.Duration) {
	if m == nil {
		return
	}

	m.starts.WithLabelValues(kind).Inc()
	m.startDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *metrics) stopped(kind string) {
	if m == nil {
		return
	}

	m.stops.WithLabelValues(kind).Inc()
}

func (m *metrics) failure(kind, operation string) {
	if m == nil {
		return
	}

	m.failures.WithLabelValues(kind, operation).Inc()
}

func (m *metrics) singletonLoaded(delta float64) {
	if m == nil {
		return
	}

	m.singletonsLoaded.Add(delta)
}

func (m *metrics) serviceRunning(delta float64) {
	if m == nil {
		return
	}

	m.servicesRunning.Add(delta)
}
