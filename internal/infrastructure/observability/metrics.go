package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Checkout and reconciliation metrics
	CheckoutSessions    *prometheus.CounterVec
	Reconciliations     *prometheus.CounterVec
	ReconcileConflicts  *prometheus.CounterVec
	ReconcileDuration   *prometheus.HistogramVec
	CreditsGranted      prometheus.Counter
	WebhookNotification *prometheus.CounterVec

	// Processor metrics
	ProcessorRequestDuration *prometheus.HistogramVec
	CircuitBreakerState      *prometheus.GaugeVec
	CircuitBreakerRequests   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Outbox relay metrics
	OutboxEntriesRelayed *prometheus.CounterVec
	OutboxRelayDuration  prometheus.Histogram
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CheckoutSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_sessions_total",
				Help:      "Checkout sessions by result",
			},
			[]string{"result"},
		),
		Reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Reconciliations by trigger source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ReconcileConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_conflicts_total",
				Help:      "Concurrent updates and processor/record disagreements seen during reconciliation",
			},
			[]string{"kind"},
		),
		ReconcileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Reconciliation duration in seconds including the processor fetch",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		),
		CreditsGranted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_granted_total",
				Help:      "Total credits granted to users from approved payments",
			},
		),
		WebhookNotification: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_notifications_total",
				Help:      "Processor notifications by kind and response status",
			},
			[]string{"kind", "status"},
		),
		ProcessorRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "processor_request_duration_seconds",
				Help:      "Payment processor request duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation", "result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_requests_total",
				Help:      "Total number of circuit breaker requests",
			},
			[]string{"name", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		OutboxEntriesRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_entries_relayed_total",
				Help:      "Outbox entries relayed to streams by stream and result",
			},
			[]string{"stream", "result"},
		),
		OutboxRelayDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbox_relay_batch_duration_seconds",
				Help:      "Duration of one outbox relay batch in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		),
	}

	reg.MustRegister(
		m.CheckoutSessions,
		m.Reconciliations,
		m.ReconcileConflicts,
		m.ReconcileDuration,
		m.CreditsGranted,
		m.WebhookNotification,
		m.ProcessorRequestDuration,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OutboxEntriesRelayed,
		m.OutboxRelayDuration,
	)

	return m
}
