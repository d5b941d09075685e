// Package metrics exposes Prometheus instruments for the extraction service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proposal"

// Pipeline stages observed by ObserveStage.
const (
	StagePrepare = "prepare"
	StageExtract = "extract"
	StageParse   = "parse"
)

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractorRequests  *prometheus.CounterVec
	pagesRasterized    prometheus.Counter
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestInFlight    prometheus.Gauge
}

// New creates and registers all instruments.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total extraction requests by resulting status.",
		},
		[]string{"status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Extraction pipeline duration in seconds by stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"stage"},
	)
	extractorRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_requests_total",
			Help:      "Calls to inference providers by outcome.",
		},
		[]string{"provider", "outcome"},
	)
	pagesRasterized := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_rasterized_total",
			Help:      "Total PDF pages rasterized.",
		},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(
		extractionsTotal,
		extractionDuration,
		extractorRequests,
		pagesRasterized,
		requestTotal,
		requestDuration,
		requestInFlight,
	)

	return &Metrics{
		registry:           registry,
		extractionsTotal:   extractionsTotal,
		extractionDuration: extractionDuration,
		extractorRequests:  extractorRequests,
		pagesRasterized:    pagesRasterized,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordExtraction counts one finished extraction.
func (m *Metrics) RecordExtraction(status string) {
	if status == "" {
		status = "unknown"
	}
	m.extractionsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long one pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.extractionDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordProviderCall matches the extractor's call observer signature.
func (m *Metrics) RecordProviderCall(provider, outcome string) {
	m.extractorRequests.WithLabelValues(provider, outcome).Inc()
}

// AddPagesRasterized counts rasterized pages.
func (m *Metrics) AddPagesRasterized(n int) {
	if n <= 0 {
		return
	}
	m.pagesRasterized.Add(float64(n))
}

// Middleware records request count, latency and in-flight requests using the
// matched route template as the path label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
