package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gym"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// OrderMetrics counts order lifecycle transitions. A nil *OrderMetrics is
// valid and records nothing.
type OrderMetrics struct {
	Created  *prometheus.CounterVec
	Verified prometheus.Counter
	Failures *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders created, by plan.",
	}, []string{"plan"})
	verified := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "payments_verified_total",
		Help:      "Orders moved from created to paid.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "verification_failures_total",
		Help:      "Payment verifications that did not complete, by reason.",
	}, []string{"reason"})

	reg.MustRegister(created, verified, failures)
	return &OrderMetrics{Created: created, Verified: verified, Failures: failures}
}

func (m *OrderMetrics) OrderCreated(plan string) {
	if m == nil {
		return
	}
	m.Created.WithLabelValues(plan).Inc()
}

func (m *OrderMetrics) PaymentVerified() {
	if m == nil {
		return
	}
	m.Verified.Inc()
}

func (m *OrderMetrics) VerificationFailed(reason string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(reason).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
