// Package prometheus exposes pipeline, consumer, saga and HTTP metrics. A
// nil *MetricsCollector is a valid no-op sink.
package prometheus

import (
	"strconv"
	"time"

	"github.com/abhissng/relay/utils/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// MetricsCollector is a struct for collecting Prometheus metrics.
type MetricsCollector struct {
	registry    *prometheus.Registry
	serviceName string

	requestCount         *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	responseSize         *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	handlerDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	timeouts        *prometheus.CounterVec
	sagaInstances   *prometheus.GaugeVec
}

// NewMetricsCollector creates a new Prometheus metrics collector with options.
func NewMetricsCollector(options ...MetricsCollectorOptions) *MetricsCollector {
	collector := &MetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	// Apply options
	for _, option := range options {
		option(collector)
	}

	collector.registerDefaultMetrics()
	return collector
}

func (mc *MetricsCollector) name(metric string) string {
	if mc.serviceName == "" {
		return metric
	}
	return mc.serviceName + "_" + metric
}

func (mc *MetricsCollector) registerDefaultMetrics() {
	factory := promauto.With(mc.registry)
	mc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mc.requestCount = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: mc.name("http_requests_total"),
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	mc.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    mc.name("http_request_duration_seconds"),
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	mc.responseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    mc.name("http_response_size_bytes"),
			Help:    "Size of HTTP responses",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path", "status_code"},
	)

	mc.httpRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: mc.name("http_requests_in_flight"),
			Help: "Current number of HTTP requests in flight",
		},
	)

	mc.handlerDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    mc.name("handler_duration_seconds"),
			Help:    "Duration of one handler attempt per message type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "status"},
	)

	mc.retries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: mc.name("handler_retries_total"),
			Help: "Handler re-invocations after a retryable failure",
		},
		[]string{"type"},
	)

	mc.duplicates = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: mc.name("handler_duplicates_total"),
			Help: "Messages whose fingerprint was already handled",
		},
		[]string{"type"},
	)

	mc.deliveries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: mc.name("deliveries_total"),
			Help: "Deliveries settled per queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	mc.deliveryLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    mc.name("delivery_duration_seconds"),
			Help:    "Time from receipt to settlement of a delivery",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	mc.timeouts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: mc.name("saga_timeouts_scheduled_total"),
			Help: "Timeout messages requested by saga transitions",
		},
		[]string{"saga"},
	)

	mc.sagaInstances = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: mc.name("saga_instances"),
			Help: "Saga states currently held by the store",
		},
		[]string{"saga"},
	)
}

// ObserveHTTP records one served HTTP request.
func (mc *MetricsCollector) ObserveHTTP(method, path string, status, size int, elapsed time.Duration) {
	if mc == nil {
		return
	}
	code := strconv.Itoa(status)
	mc.requestCount.WithLabelValues(method, path, code).Inc()
	mc.requestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
	if size >= 0 {
		mc.responseSize.WithLabelValues(method, path, code).Observe(float64(size))
	}
}

// InFlight tracks concurrent HTTP requests; call the returned func when done.
func (mc *MetricsCollector) InFlight() func() {
	if mc == nil {
		return func() {}
	}
	mc.httpRequestsInFlight.Inc()
	return mc.httpRequestsInFlight.Dec
}

// ObserveHandler implements handler.Metrics.
func (mc *MetricsCollector) ObserveHandler(messageType string, elapsed time.Duration, err error) {
	if mc == nil {
		return
	}
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	mc.handlerDuration.WithLabelValues(messageType, status).Observe(elapsed.Seconds())
}

// IncRetry implements handler.Metrics.
func (mc *MetricsCollector) IncRetry(messageType string) {
	if mc == nil {
		return
	}
	mc.retries.WithLabelValues(messageType).Inc()
}

// IncDuplicate implements handler.Metrics.
func (mc *MetricsCollector) IncDuplicate(messageType string) {
	if mc == nil {
		return
	}
	mc.duplicates.WithLabelValues(messageType).Inc()
}

// ObserveDelivery implements engine.Metrics.
func (mc *MetricsCollector) ObserveDelivery(queue string, outcome types.Outcome, elapsed time.Duration) {
	if mc == nil {
		return
	}
	mc.deliveries.WithLabelValues(queue, outcome.String()).Inc()
	mc.deliveryLatency.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// IncTimeoutScheduled implements saga.Metrics.
func (mc *MetricsCollector) IncTimeoutScheduled(saga string) {
	if mc == nil {
		return
	}
	mc.timeouts.WithLabelValues(saga).Inc()
}

// SetSagaInstances implements saga.Metrics.
func (mc *MetricsCollector) SetSagaInstances(saga string, n int) {
	if mc == nil {
		return
	}
	mc.sagaInstances.WithLabelValues(saga).Set(float64(n))
}
