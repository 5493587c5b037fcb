package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records orchestrator transitions and payment gateway latency.
type CheckoutMetrics struct {
	transitions *prometheus.CounterVec
	intents     *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Checkout state machine transitions.",
	}, []string{"from", "to"})
	intents := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_intent_request_seconds",
		Help:    "Latency of payment intent requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(transitions, intents)
	return &CheckoutMetrics{transitions: transitions, intents: intents}
}

// Transition counts a move between two checkout states.
func (m *CheckoutMetrics) Transition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveIntent records how long an intent request took and whether it succeeded.
func (m *CheckoutMetrics) ObserveIntent(duration time.Duration, err error) {
	if m == nil || m.intents == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.intents.WithLabelValues(outcome).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
