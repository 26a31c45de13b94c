package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront_iam"

// Metrics holds the domain counters shared by the token lifecycle, the outbox and the consumers.
type Metrics struct {
	tokensIssued   *prometheus.CounterVec
	tokensRedeemed *prometheus.CounterVec
	tokensRejected *prometheus.CounterVec
	eventsRelayed  *prometheus.CounterVec
	eventsConsumed *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Opaque tokens issued, by kind.",
		}, []string{"kind"}),
		tokensRedeemed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_redeemed_total",
			Help:      "One-time tokens successfully redeemed, by kind.",
		}, []string{"kind"}),
		tokensRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_rejected_total",
			Help:      "Tokens rejected during validation or redemption, by kind and reason.",
		}, []string{"kind", "reason"}),
		eventsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_relayed_total",
			Help:      "Outbox messages relayed to the bus, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		eventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Bus messages handled by consumers, by topic and outcome.",
		}, []string{"topic", "outcome"}),
	}
}

func (m *Metrics) TokenIssued(kind string) {
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) TokenRedeemed(kind string) {
	m.tokensRedeemed.WithLabelValues(kind).Inc()
}

func (m *Metrics) TokenRejected(kind, reason string) {
	m.tokensRejected.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) EventRelayed(eventType string, ok bool) {
	m.eventsRelayed.WithLabelValues(eventType, outcome(ok)).Inc()
}

func (m *Metrics) EventConsumed(topic string, ok bool) {
	m.eventsConsumed.WithLabelValues(topic, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
