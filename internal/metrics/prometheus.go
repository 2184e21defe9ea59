package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockbrief/internal/types"
)

// PrometheusCollector exposes metrics for scraping on /metrics.
type PrometheusCollector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	quotaDecisions   *prometheus.CounterVec
	reportOutcomes   *prometheus.CounterVec
	ledgerFailures   prometheus.Counter
	webhookOutcomes  *prometheus.CounterVec
	externalFailures *prometheus.CounterVec
}

// NewPrometheusCollector registers the service metrics, plus the Go runtime
// and process collectors, on a fresh registry.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	namespace = strings.ToLower(namespace)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency distribution",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 90},
			},
			[]string{"method", "endpoint"},
		),
		quotaDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "decisions_total",
				Help:      "Quota admission decisions",
			},
			[]string{"plan", "decision"},
		),
		reportOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "outcomes_total",
				Help:      "Report pipeline outcomes",
			},
			[]string{"plan", "outcome"},
		),
		ledgerFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "write_failures_total",
				Help:      "Usage ledger appends that failed after a delivered report",
			},
		),
		webhookOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Billing webhook events by outcome",
			},
			[]string{"event", "outcome"},
		),
		externalFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external",
				Name:      "failures_total",
				Help:      "Failed calls to third-party providers",
			},
			[]string{"provider"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *PrometheusCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	c.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordQuotaDecision(plan types.PlanTier, admitted bool) {
	c.quotaDecisions.WithLabelValues(planLabel(plan), admittedLabel(admitted)).Inc()
}

func (c *PrometheusCollector) RecordReportOutcome(plan types.PlanTier, outcome string) {
	c.reportOutcomes.WithLabelValues(planLabel(plan), outcome).Inc()
}

func (c *PrometheusCollector) RecordLedgerWriteFailure() {
	c.ledgerFailures.Inc()
}

func (c *PrometheusCollector) RecordWebhookOutcome(eventName, outcome string) {
	if eventName == "" {
		eventName = "unknown"
	}
	c.webhookOutcomes.WithLabelValues(eventName, outcome).Inc()
}

func (c *PrometheusCollector) RecordExternalFailure(provider string) {
	c.externalFailures.WithLabelValues(provider).Inc()
}

var _ Collector = (*PrometheusCollector)(nil)
