// Package metrics exposes Prometheus counters for the call orchestration
// subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the orchestration counters and their registry.
type Metrics struct {
	registry *prometheus.Registry

	WebhookEvents     *prometheus.CounterVec
	Claims            *prometheus.CounterVec
	SMSSends          *prometheus.CounterVec
	PushSends         *prometheus.CounterVec
	DispatcherDropped prometheus.Counter
}

// New creates and registers the orchestration metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringdesk_webhook_events_total",
			Help: "Telephony webhook callbacks received, by callback type.",
		}, []string{"type"}),
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringdesk_notification_claims_total",
			Help: "Notification claim attempts, by SMS type and outcome.",
		}, []string{"sms_type", "outcome"}),
		SMSSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringdesk_sms_sends_total",
			Help: "Outbound SMS sends, by outcome.",
		}, []string{"outcome"}),
		PushSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringdesk_push_sends_total",
			Help: "Outbound push notifications, by outcome.",
		}, []string{"outcome"}),
		DispatcherDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ringdesk_dispatcher_dropped_total",
			Help: "Best-effort tasks dropped because the dispatch queue was full.",
		}),
	}

	m.registry.MustRegister(
		m.WebhookEvents,
		m.Claims,
		m.SMSSends,
		m.PushSends,
		m.DispatcherDropped,
	)
	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ClaimOutcome converts a claim result to its metric label.
func ClaimOutcome(won bool) string {
	if won {
		return "won"
	}
	return "lost"
}

// SendOutcome converts a send error to its metric label.
func SendOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
