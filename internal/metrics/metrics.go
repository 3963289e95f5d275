// Package metrics exposes pipeline and HTTP counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

const namespace = "riskreg"

// Metrics owns a private registry with the Go and process collectors plus the
// application metrics. It implements core.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	imports      *prometheus.CounterVec
	importRows   *prometheus.CounterVec
	saves        *prometheus.CounterVec
	auditEntries prometheus.Counter
	exports      *prometheus.CounterVec
	requests     *prometheus.HistogramVec
}

var _ core.Recorder = (*Metrics)(nil)

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Workbook imports by result.",
		}, []string{"result"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Records touched by imports: created assets, controls and risk items, matched and skipped rows.",
		}, []string{"kind"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Risk item saves by outcome.",
		}, []string{"outcome"}),
		auditEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Audit log entries written.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Register exports by format and result.",
		}, []string{"format", "result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.imports, m.importRows, m.saves, m.auditEntries, m.exports, m.requests,
	)
	return m
}

// Registry returns the registry, for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ImportFinished(report *core.ImportReport, err error) {
	m.imports.WithLabelValues(result(err)).Inc()
	if report == nil {
		return
	}
	m.importRows.WithLabelValues("asset_created").Add(float64(report.AssetsCreated))
	m.importRows.WithLabelValues("control_created").Add(float64(report.ControlsCreated))
	m.importRows.WithLabelValues("risk_created").Add(float64(report.AssessmentsCreated))
	m.importRows.WithLabelValues("risk_matched").Add(float64(report.AssessmentsMatched))
	m.importRows.WithLabelValues("skipped").Add(float64(report.RowsSkipped))
}

func (m *Metrics) SaveFinished(outcome core.SaveOutcome, entries int) {
	m.saves.WithLabelValues(string(outcome)).Inc()
	m.auditEntries.Add(float64(entries))
}

func (m *Metrics) ExportFinished(format string, err error) {
	m.exports.WithLabelValues(format, result(err)).Inc()
}

// ObserveRequest records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
