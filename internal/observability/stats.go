package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// StatsReceiver records dispatch and request statistics.
type StatsReceiver interface {
	// RecordAttempt counts one handler invocation by a fallback router.
	RecordAttempt(router string)
	// RecordFallthrough counts a not-found answer that advanced a router
	// to its next handler.
	RecordFallthrough(router string)
	// RecordRequest records a finished request.
	RecordRequest(method, route, host string, status int, duration time.Duration)
}

// nopStats discards everything.
type nopStats struct{}

// NopStats returns a StatsReceiver that records nothing.
func NopStats() StatsReceiver {
	return nopStats{}
}

func (nopStats) RecordAttempt(string)                                     {}
func (nopStats) RecordFallthrough(string)                                 {}
func (nopStats) RecordRequest(string, string, string, int, time.Duration) {}

// PrometheusStats is a StatsReceiver backed by Prometheus collectors.
type PrometheusStats struct {
	attempts        *prometheus.CounterVec
	fallthroughs    *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	hostRequests    *prometheus.CounterVec
	buildInfo       *prometheus.GaugeVec
	startTime       prometheus.Gauge
	registry        *prometheus.Registry
}

// NewPrometheusStats creates a receiver registered on a fresh registry that
// also carries the Go runtime and process collectors.
func NewPrometheusStats(namespace string) *PrometheusStats {
	if namespace == "" {
		namespace = "admin"
	}

	s := &PrometheusStats{
		registry: prometheus.NewRegistry(),
	}

	s.attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Total number of handler invocations by fallback routers",
		},
		[]string{"router"},
	)

	s.fallthroughs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "fallthroughs_total",
			Help:      "Total number of not-found answers that advanced a fallback router",
		},
		[]string{"router"},
	)

	s.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	s.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route"},
	)

	s.hostRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_requests_total",
			Help:      "Total number of HTTP requests per remote host",
		},
		[]string{"host", "status"},
	)

	s.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit"},
	)

	s.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the process since unix epoch in seconds",
		},
	)

	s.registry.MustRegister(
		s.attempts,
		s.fallthroughs,
		s.requestsTotal,
		s.requestDuration,
		s.hostRequests,
		s.buildInfo,
		s.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.startTime.SetToCurrentTime()

	return s
}

// RecordAttempt implements StatsReceiver.
func (s *PrometheusStats) RecordAttempt(router string) {
	s.attempts.WithLabelValues(router).Inc()
}

// RecordFallthrough implements StatsReceiver.
func (s *PrometheusStats) RecordFallthrough(router string) {
	s.fallthroughs.WithLabelValues(router).Inc()
}

// RecordRequest implements StatsReceiver.
func (s *PrometheusStats) RecordRequest(method, route, host string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	s.requestsTotal.WithLabelValues(method, route, code).Inc()
	s.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	if host != "" {
		s.hostRequests.WithLabelValues(host, code).Inc()
	}
}

// SetBuildInfo publishes build information.
func (s *PrometheusStats) SetBuildInfo(version, commit string) {
	s.buildInfo.WithLabelValues(version, commit).Set(1)
}

// Registry returns the registry holding every collector.
func (s *PrometheusStats) Registry() *prometheus.Registry {
	return s.registry
}

// Gatherer returns the registry as a prometheus.Gatherer.
func (s *PrometheusStats) Gatherer() prometheus.Gatherer {
	return s.registry
}
