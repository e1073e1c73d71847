package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the pipeline
// worker.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	batchesProcessedTotal   *prometheus.CounterVec
	pipelineDuration        prometheus.Histogram
	rowsRejectedTotal       prometheus.Counter
	invoicesDispatchedTotal *prometheus.CounterVec
	dispatchDuration        prometheus.Histogram
	pipelinesInflight       prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "invoice_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "invoice_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "invoice_engine",
				Name:      "batches_processed_total",
				Help:      "Total number of batch pipeline runs by terminal status.",
			},
			[]string{"status"},
		),
		pipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "invoice_engine",
				Name:      "pipeline_duration_seconds",
				Help:      "Full pipeline run duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		rowsRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "invoice_engine",
				Name:      "rows_rejected_total",
				Help:      "Total number of source rows rejected by validation.",
			},
		),
		invoicesDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "invoice_engine",
				Name:      "invoices_dispatched_total",
				Help:      "Total number of dispatch calls by result.",
			},
			[]string{"result"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "invoice_engine",
				Name:      "dispatch_duration_seconds",
				Help:      "Single invoice dispatch call duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		pipelinesInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "invoice_engine",
				Name:      "pipelines_inflight",
				Help:      "Current number of batch pipelines being processed.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesProcessedTotal,
		m.pipelineDuration,
		m.rowsRejectedTotal,
		m.invoicesDispatchedTotal,
		m.dispatchDuration,
		m.pipelinesInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchProcessed(status string) {
	if m == nil {
		return
	}
	m.batchesProcessedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePipelineDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineDuration.Observe(d.Seconds())
}

func (m *Metrics) AddRowsRejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsRejectedTotal.Add(float64(n))
}

func (m *Metrics) IncInvoiceDispatched(success bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !success {
		result = "remote_error"
	}
	m.invoicesDispatchedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDispatchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Observe(d.Seconds())
}

func (m *Metrics) IncPipelineInflight() {
	if m == nil {
		return
	}
	m.pipelinesInflight.Inc()
}

func (m *Metrics) DecPipelineInflight() {
	if m == nil {
		return
	}
	m.pipelinesInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// routePath prefers the registered route pattern over the raw URL to keep
// label cardinality bounded.
func routePath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
		return route.Path
	}
	return c.Path()
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	return c.Response().StatusCode()
}
