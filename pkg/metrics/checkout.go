package metrics

import "github.com/prometheus/client_golang/prometheus"

// Payment confirmation sources.
const (
	SourceStatusCheck = "status_check"
	SourceWebhook     = "webhook"
	SourceReconcile   = "reconcile"
)

// CheckoutMetrics counts gateway session activity and payment confirmations.
type CheckoutMetrics struct {
	sessions  *prometheus.CounterVec
	checks    *prometheus.CounterVec
	confirmed *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout counters on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_total",
		Help:      "Checkout sessions requested, by outcome (created, reused, paid, failed).",
	}, []string{"outcome"})
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "status_checks_total",
		Help:      "Payment status lookups, by reported status.",
	}, []string{"status"})
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "payments_confirmed_total",
		Help:      "Orders marked paid, by the path that observed the payment.",
	}, []string{"source"})
	reg.MustRegister(sessions, checks, confirmed)
	return &CheckoutMetrics{sessions: sessions, checks: checks, confirmed: confirmed}
}

// IncSession records a checkout session request outcome.
func (c *CheckoutMetrics) IncSession(outcome string) {
	if c == nil || c.sessions == nil {
		return
	}
	c.sessions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStatusCheck records a payment status lookup.
func (c *CheckoutMetrics) IncStatusCheck(status string) {
	if c == nil || c.checks == nil {
		return
	}
	c.checks.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncConfirmed records an order transitioning to paid.
func (c *CheckoutMetrics) IncConfirmed(source string) {
	if c == nil || c.confirmed == nil {
		return
	}
	c.confirmed.WithLabelValues(normalizeLabel(source)).Inc()
}
