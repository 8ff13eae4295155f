// Package metrics exposes Prometheus counters for the HTTP routes and the
// login flow.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/umakantv/go-utils/httpserver"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type Metrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loginResults    *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// New registers the collectors on reg. Collectors already present on reg are
// reused, so calling New twice against the default registry is safe.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "journal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "journal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		loginResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "journal",
			Subsystem: "auth",
			Name:      "login_results_total",
			Help:      "Number of login outcomes",
		}, []string{"outcome"}),
		gatherer: gatherer,
	}

	m.requestTotal = register(reg, m.requestTotal).(*prometheus.CounterVec)
	m.requestDuration = register(reg, m.requestDuration).(*prometheus.HistogramVec)
	m.loginResults = register(reg, m.loginResults).(*prometheus.CounterVec)
	return m
}

// NewDefault uses the global Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector
		}
		panic(err)
	}
	return c
}

// Instrument records count and latency of every call to next under route
func (m *Metrics) Instrument(route string, next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		recorder := &responseRecorder{ResponseWriter: w}
		start := time.Now()
		next(ctx, recorder, r)
		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		m.requestTotal.With(labels).Inc()
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// LoginResult counts a login outcome: success, rejected or error
func (m *Metrics) LoginResult(outcome string) {
	m.loginResults.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// Handler serves the exposition format
func (m *Metrics) Handler() httpserver.HandlerFunc {
	h := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	return rr.ResponseWriter.Write(b)
}
