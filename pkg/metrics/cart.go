package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded for cart operations.
const (
	OutcomeSuccess    = "success"
	OutcomeNoop       = "noop"
	OutcomeOutOfStock = "out_of_stock"
	OutcomeNotInCart  = "not_in_cart"
	OutcomeError      = "error"
)

// CartMetrics records latency and outcomes of cart mutations.
type CartMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_total",
		Help: "Cart operations by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, total)
	return &CartMetrics{
		duration: duration,
		total:    total,
	}
}

// Observe records one finished operation.
func (c *CartMetrics) Observe(operation, outcome string, duration time.Duration) {
	if c == nil || c.duration == nil || c.total == nil {
		return
	}
	operation = normalizeLabel(operation)
	c.duration.WithLabelValues(operation).Observe(duration.Seconds())
	c.total.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
