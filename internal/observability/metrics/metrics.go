package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics exposes Prometheus primitives for the HTTP surface.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers and returns HTTP request metrics.
func NewHTTPMetrics() *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "Counts HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "HTTP request latency per method/route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	prometheus.MustRegister(requests, duration)

	return &HTTPMetrics{
		requests: requests,
		duration: duration,
	}
}

// EngineMetrics counts the financial operations of the commission engine.
type EngineMetrics struct {
	ledgerEntries  *prometheus.CounterVec
	calculations   *prometheus.CounterVec
	conversions    *prometheus.CounterVec
	payoutDuration prometheus.Histogram
}

// NewEngineMetrics registers and returns commission engine metrics.
func NewEngineMetrics() *EngineMetrics {
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_prepay_ledger_entries_total",
		Help: "Prepay ledger entries written by direction and source type.",
	}, []string{"direction", "source_type"})

	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_commission_calculations_total",
		Help: "Commission calculation runs by outcome.",
	}, []string{"outcome"})

	conversions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_currency_conversions_total",
		Help: "Currency conversions by rate mode.",
	}, []string{"rate_mode"})

	payoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "backoffice_commission_calculation_duration_seconds",
		Help:    "Duration of a single user/period commission calculation.",
		Buckets: prometheus.DefBuckets,
	})

	prometheus.MustRegister(ledgerEntries, calculations, conversions, payoutDuration)

	return &EngineMetrics{
		ledgerEntries:  ledgerEntries,
		calculations:   calculations,
		conversions:    conversions,
		payoutDuration: payoutDuration,
	}
}

// RecordLedgerEntry increments prepay ledger entry counts.
func (m *EngineMetrics) RecordLedgerEntry(direction, sourceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(strings.TrimSpace(direction), strings.TrimSpace(sourceType)).Inc()
}

// RecordCalculation increments calculation run counts and latency.
func (m *EngineMetrics) RecordCalculation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(strings.TrimSpace(outcome)).Inc()
	m.payoutDuration.Observe(elapsed.Seconds())
}

// RecordConversion increments currency conversion counts.
func (m *EngineMetrics) RecordConversion(rateMode string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(strings.TrimSpace(rateMode)).Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}

		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
