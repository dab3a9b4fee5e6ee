package hub

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "hubsync"
	metricsSubsystem = "client"
)

type clientMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

var (
	defaultClientMetricsOnce sync.Once
	defaultClientMetricsInst *clientMetrics
)

func getDefaultClientMetrics() *clientMetrics {
	defaultClientMetricsOnce.Do(func() {
		defaultClientMetricsInst = newClientMetrics(prometheus.DefaultRegisterer)
	})
	return defaultClientMetricsInst
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Total number of requests issued to the Hub.",
		}, []string{"method", "route", "status_class"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Hub request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_class"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "errors_total",
			Help:      "Total number of Hub requests that failed or returned status >= 400.",
		}, []string{"method", "route", "status_code"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestTotal, m.requestDuration, m.requestErrors)
	}
	return m
}

// observe records one request. status is zero when no response arrived.
func (m *clientMetrics) observe(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	statusClass := httpStatusClass(status)
	m.requestTotal.WithLabelValues(method, route, statusClass).Inc()
	m.requestDuration.WithLabelValues(method, route, statusClass).Observe(elapsed.Seconds())
	if status == 0 || status >= http.StatusBadRequest {
		m.requestErrors.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
}

// MetricsHandler serves the client metrics in the Prometheus exposition format.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func httpStatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	case code == 0:
		return "none"
	default:
		return "1xx"
	}
}
