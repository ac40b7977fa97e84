// Package metrics exposes Prometheus collectors for a mining run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "patchintegrator"

// Outcome label values.
const (
	OutcomeClean       = "clean"
	OutcomeConflicting = "conflicting"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomeDone        = "done"
	OutcomeIncomplete  = "incomplete"

	StatusProcessed = "processed"
	StatusTimedOut  = "timed_out"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	mergeCommits       *prometheus.CounterVec
	refactoringCommits *prometheus.CounterVec
	detectionSeconds   prometheus.Histogram
	projects           *prometheus.CounterVec

	inFlight        *prometheus.GaugeVec
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		mergeCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_commits_total",
			Help:      "Merge commits analysed, by outcome.",
		}, []string{"outcome"}),
		refactoringCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refactoring_commits_total",
			Help:      "History commits passed to refactoring detection, by final status.",
		}, []string{"status"}),
		detectionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refactoring_detection_seconds",
			Help:      "Wall-clock time of refactoring detection per commit.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 240, 300},
		}),
		projects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projects_total",
			Help:      "Projects handled by the run, by outcome.",
		}, []string{"outcome"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_client_in_flight_requests",
			Help: "A gauge of in-flight requests being made against an HTTP API, by client.",
		}, []string{"client"}),
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "A summary of requests made against an HTTP API, by client, status code, and request method.",
		}, []string{"client", "code", "method"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "A histogram of request timing against an HTTP API, by client and request method.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"client", "method"}),
	}
}

// Registry is the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MergeCommit(outcome string) {
	if m == nil {
		return
	}
	m.mergeCommits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefactoringCommit(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.refactoringCommits.WithLabelValues(status).Inc()
	if status != StatusSkipped {
		m.detectionSeconds.Observe(took.Seconds())
	}
}

func (m *Metrics) Project(outcome string) {
	if m == nil {
		return
	}
	m.projects.WithLabelValues(outcome).Inc()
}

type loggingRT struct {
	name       string
	underlying http.RoundTripper
	logger     *zap.SugaredLogger
}

func (rt *loggingRT) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// Log the start of long HTTP requests.
	timer := time.AfterFunc(10*time.Second, func() {
		rt.logger.Infow("ongoing long http request",
			"name", rt.name,
			"method", req.Method,
			"uri", req.URL.String(),
			"duration", time.Since(start),
		)
	})
	defer timer.Stop()

	res, err := rt.underlying.RoundTrip(req)
	if err != nil {
		rt.logger.Infow("outgoing http request completed with error",
			"name", rt.name, "method", req.Method, "uri", req.URL.String(), "error", err)
		return res, err
	}
	rt.logger.Debugw("outgoing http request complete",
		"name", rt.name,
		"method", req.Method,
		"uri", req.URL.String(),
		"duration", time.Since(start),
		"status", res.Status,
	)
	return res, nil
}

// InstrumentRoundTripper returns an http.RoundTripper that collects Prometheus metrics; delegating
// to the underlying RoundTripper to actually make requests.
func (m *Metrics) InstrumentRoundTripper(name string, rt http.RoundTripper, logger *zap.SugaredLogger) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logged := &loggingRT{name: name, underlying: rt, logger: logger}
	if m == nil {
		return logged
	}

	ls := prometheus.Labels{"client": name}
	return promhttp.InstrumentRoundTripperInFlight(
		m.inFlight.With(ls),
		promhttp.InstrumentRoundTripperDuration(
			m.requestDuration.MustCurryWith(ls),
			promhttp.InstrumentRoundTripperCounter(
				m.requestCount.MustCurryWith(ls),
				logged)))
}
