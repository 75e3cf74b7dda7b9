package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radlee/payments-api/domain/ratelimit"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	PaymentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment attempts by terminal outcome",
		},
		[]string{"outcome"},
	)
	RateBudgetRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payments_rate_budget_remaining",
			Help: "Payment slots left in the current rate period",
		},
	)
	RateBudgetLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payments_rate_budget_limit",
			Help: "Payment slots per rate period",
		},
	)
)

// NormalizePath maps a gin route template to a label value. Unmatched
// requests share one label so scanners cannot blow up cardinality.
func NormalizePath(route string) string {
	if route == "" {
		return "unmatched"
	}
	route = strings.Trim(route, "/")
	if route == "" {
		return "root"
	}
	return route
}

// ObservePayment counts one attempt. outcome is "success" or an error kind.
func ObservePayment(outcome string) {
	PaymentTotal.WithLabelValues(outcome).Inc()
}

func ObserveBudget(b ratelimit.Budget) {
	RateBudgetRemaining.Set(float64(b.Remaining))
	RateBudgetLimit.Set(float64(b.Limit))
}

func Middleware(c *gin.Context) {
	if c.Request.URL.Path == "/metrics" {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()
	duration := time.Since(start).Seconds()
	path := NormalizePath(c.FullPath())
	status := strconv.Itoa(c.Writer.Status())
	RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
}
