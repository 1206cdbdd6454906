package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	RecordsCreatedTotal *prometheus.CounterVec
	PredictionsTotal    *prometheus.CounterVec
	InferenceDuration   prometheus.Histogram
	InferenceFailures   prometheus.Counter
	RepliesTotal        *prometheus.CounterVec

	ReportsGenerated prometheus.Counter
	ReportsFailed    prometheus.Counter
	ReportDuration   prometheus.Histogram

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCollector registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry().
func NewCollector(serviceName string, reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)

	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		RecordsCreatedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "records_created_total",
			Help:      "Total patient records created, by confidence source.",
		}, []string{"source"}),

		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "predictions_total",
			Help:      "Classifier predictions by label.",
		}, []string{"label"}),

		InferenceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "inference",
			Name:      "duration_seconds",
			Help:      "Classifier call latency distribution.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),

		InferenceFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "inference",
			Name:      "failures_total",
			Help:      "Classifier calls that returned an error.",
		}),

		RepliesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "clinical",
			Name:      "replies_total",
			Help:      "Replies appended to records, by author role.",
		}, []string{"role"}),

		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "report",
			Name:      "generated_total",
			Help:      "PDF reports written.",
		}),

		ReportsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "report",
			Name:      "failed_total",
			Help:      "PDF report generations that failed.",
		}),

		ReportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "PDF report generation latency distribution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),

		AuditEntriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),

		gatherer: reg,
	}
}

// NewDefaultCollector registers on a fresh registry that also carries the Go
// runtime and process collectors.
func NewDefaultCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewCollector(serviceName, reg)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
