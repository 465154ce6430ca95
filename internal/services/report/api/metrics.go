package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the report API.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	reportsGenerated  prometheus.Counter
	reportsStale      prometheus.Counter
	activitiesLogged  prometheus.Counter
}

// NewMetrics creates and registers the API instruments on a private
// registry so multiple servers can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbontrace_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carbontrace_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		reportsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carbontrace_reports_generated_total",
			Help: "Total derived reports computed.",
		}),
		reportsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carbontrace_reports_stale_total",
			Help: "Total reports served from the last known good snapshot.",
		}),
		activitiesLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carbontrace_activities_logged_total",
			Help: "Total activity records accepted over HTTP.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.reportsGenerated,
		m.reportsStale,
		m.activitiesLogged,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request counts and durations for one route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// ReportGenerated counts one computed report, stale or fresh.
func (m *Metrics) ReportGenerated(stale bool) {
	if m == nil {
		return
	}
	m.reportsGenerated.Inc()
	if stale {
		m.reportsStale.Inc()
	}
}

// ActivityLogged counts one accepted activity record.
func (m *Metrics) ActivityLogged() {
	if m == nil {
		return
	}
	m.activitiesLogged.Inc()
}
