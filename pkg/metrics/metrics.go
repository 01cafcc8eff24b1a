// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seqimprove"

// Metrics contains every collector the service records into. The
// recording methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	AnnotationPasses   *prometheus.CounterVec
	AnnotationDuration *prometheus.HistogramVec
	LibraryOperations  *prometheus.CounterVec
	LibrariesLoaded    prometheus.Gauge
	NERRequests        *prometheus.CounterVec
	UngroundedMentions prometheus.Counter
	SimilarLookups     *prometheus.CounterVec
	ToolRuns           *prometheus.CounterVec
	RunsPruned         prometheus.Counter
}

// New creates the collectors and registers them, plus the Go and
// process collectors, on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		AnnotationPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "annotation",
				Name:      "passes_total",
				Help:      "Total number of per-library annotation passes",
			},
			[]string{"status"},
		),

		AnnotationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "annotation",
				Name:      "duration_seconds",
				Help:      "Duration of annotation calls in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		LibraryOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "library",
				Name:      "operations_total",
				Help:      "Total number of library registry operations",
			},
			[]string{"operation", "status"},
		),

		LibrariesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "library",
				Name:      "loaded",
				Help:      "Number of libraries currently registered",
			},
		),

		NERRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ner",
				Name:      "requests_total",
				Help:      "Total number of entity recognition requests",
			},
			[]string{"status"},
		),

		UngroundedMentions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ner",
				Name:      "ungrounded_mentions_total",
				Help:      "Mentions returned without an ontology identifier",
			},
		),

		SimilarLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "similar",
				Name:      "lookups_total",
				Help:      "Similar-part lookups by outcome (ok, empty, failed, cached)",
			},
			[]string{"outcome"},
		),

		ToolRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tools",
				Name:      "runs_total",
				Help:      "External tool invocations",
			},
			[]string{"tool", "status"},
		),

		RunsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runs",
				Name:      "pruned_total",
				Help:      "Annotation run records deleted by retention",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.AnnotationPasses,
		m.AnnotationDuration,
		m.LibraryOperations,
		m.LibrariesLoaded,
		m.NERRequests,
		m.UngroundedMentions,
		m.SimilarLookups,
		m.ToolRuns,
		m.RunsPruned,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordAnnotationPass records one library pass ("ok" or "failed")
func (m *Metrics) RecordAnnotationPass(status string) {
	if m == nil {
		return
	}
	m.AnnotationPasses.WithLabelValues(status).Inc()
}

// RecordAnnotation records a whole annotate call
func (m *Metrics) RecordAnnotation(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnnotationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordLibraryOperation records an import, removal or reload
func (m *Metrics) RecordLibraryOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.LibraryOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// SetLibrariesLoaded updates the registry size
func (m *Metrics) SetLibrariesLoaded(n int) {
	if m == nil {
		return
	}
	m.LibrariesLoaded.Set(float64(n))
}

// RecordNERRequest records one entity recognition call
func (m *Metrics) RecordNERRequest(err error) {
	if m == nil {
		return
	}
	m.NERRequests.WithLabelValues(outcome(err)).Inc()
}

// RecordUngrounded adds mentions that carried no identifier
func (m *Metrics) RecordUngrounded(n int) {
	if m == nil {
		return
	}
	m.UngroundedMentions.Add(float64(n))
}

// RecordSimilarLookup records a similar-parts lookup outcome
func (m *Metrics) RecordSimilarLookup(result string) {
	if m == nil {
		return
	}
	m.SimilarLookups.WithLabelValues(result).Inc()
}

// RecordToolRun records an external tool invocation
func (m *Metrics) RecordToolRun(tool string, err error) {
	if m == nil {
		return
	}
	m.ToolRuns.WithLabelValues(tool, outcome(err)).Inc()
}

// RecordRunsPruned adds pruned run records
func (m *Metrics) RecordRunsPruned(n int64) {
	if m == nil {
		return
	}
	m.RunsPruned.Add(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
