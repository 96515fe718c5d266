package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics exposes Prometheus request instruments for the gin engine.
type HTTPMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRegistry returns the registry for bridge HTTP metrics. Go, process and
// gorm collectors live on the default registry; Gatherer merges both.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// NewHTTPMetrics registers request metrics on registry.
func NewHTTPMetrics(registry *prometheus.Registry) *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authbridge_http_requests_total",
		Help: "Counts HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authbridge_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	registry.MustRegister(requests, duration)

	return &HTTPMetrics{registry: registry, requests: requests, duration: duration}
}

func (m *HTTPMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Gatherer serves the default registry together with the bridge registry.
func (m *HTTPMetrics) Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{prometheus.DefaultGatherer, m.registry}
}

// GinMiddleware records every request after the handler chain completes.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
