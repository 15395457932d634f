package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pos"

// Metrics holds every collector the service exports. Collectors are
// registered once on construction; tests pass a fresh registry.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	OrdersPlaced  *prometheus.CounterVec
	OrderFailures *prometheus.CounterVec
	AuditEntries  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OrdersPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_placed_total",
				Help:      "Orders committed, by payment method.",
			},
			[]string{"payment_method"},
		),
		OrderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_failures_total",
				Help:      "Rejected or failed order placements, by reason.",
			},
			[]string{"reason"},
		),
		AuditEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_entries_total",
				Help:      "Audit entries handled by the dispatcher, by outcome.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.OrdersPlaced,
		m.OrderFailures,
		m.AuditEntries,
	)

	return m
}

// NewNop returns collectors registered on a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
