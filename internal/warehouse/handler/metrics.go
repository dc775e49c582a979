package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	wtrTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wtr_ledger_transactions_total",
		Help: "Total ledger transactions appended, by transaction type.",
	}, []string{"type"})

	wtrBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wtr_ledger_blocks_total",
		Help: "Total ledger blocks created after genesis.",
	})

	wtrRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wtr_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	wtrRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wtr_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	wtrChainChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wtr_chain_checks_total",
		Help: "Total chain integrity checks by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		wtrRequestsTotal.WithLabelValues(method, path, status).Inc()
		wtrRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordTransaction records one appended ledger transaction.
func RecordTransaction(txType string) {
	wtrTransactionsTotal.WithLabelValues(txType).Inc()
}

// RecordBlock records one created ledger block.
func RecordBlock() {
	wtrBlocksTotal.Inc()
}

// RecordChainCheck records a chain integrity check result.
func RecordChainCheck(success bool) {
	if success {
		wtrChainChecksTotal.WithLabelValues("success").Inc()
	} else {
		wtrChainChecksTotal.WithLabelValues("failure").Inc()
	}
}
