// Package monitoring exposes Prometheus metrics and the health endpoint.
package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// MetricsCollector owns a registry with the HTTP and bonus metrics.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	bonusAssignments *prometheus.CounterVec
	bonusAmountTotal prometheus.Counter
}

// NewMetricsCollector creates a collector with its own registry, so that
// several can coexist in tests.
func NewMetricsCollector(serviceName, version string) *MetricsCollector {
	name := strings.ReplaceAll(serviceName, "-", "_")
	mc := &MetricsCollector{serviceName: name, registry: prometheus.NewRegistry()}

	mc.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	mc.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	mc.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_active_requests",
		Help: "Number of in-flight HTTP requests",
	})
	mc.bonusAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_bonus_assignments_total",
			Help: "Solicitor assignment operations by outcome",
		},
		[]string{"outcome"},
	)
	mc.bonusAmountTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: name + "_bonus_amount_total",
		Help: "Sum of bonus amounts calculated on assignment",
	})
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name + "_service_info",
		Help: "Service information",
	}, []string{"version"})

	mc.registry.MustRegister(
		mc.httpRequestsTotal,
		mc.httpRequestDuration,
		mc.activeRequests,
		mc.bonusAssignments,
		mc.bonusAmountTotal,
		info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	info.WithLabelValues(version).Set(1)

	return mc
}

// Registry returns the underlying registry.
func (mc *MetricsCollector) Registry() *prometheus.Registry { return mc.registry }

// Middleware records request count and latency per chi route pattern.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mc.activeRequests.Inc()
		defer mc.activeRequests.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		mc.httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		mc.httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

// AssignmentRecorded counts an assignment outcome; bonus is added to the
// running amount total.
func (mc *MetricsCollector) AssignmentRecorded(outcome string, bonus decimal.Decimal) {
	mc.bonusAssignments.WithLabelValues(outcome).Inc()
	if bonus.IsPositive() {
		mc.bonusAmountTotal.Add(bonus.InexactFloat64())
	}
}
