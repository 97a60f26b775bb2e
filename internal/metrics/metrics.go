// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "picadito"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueueJoins          *prometheus.CounterVec
	QueueLeaves         prometheus.Counter
	FormationAttempts   *prometheus.CounterVec
	FormationConflicts  prometheus.Counter
	MatchesFormed       *prometheus.CounterVec
	SystemMessageErrors prometheus.Counter
	EventPublishErrors  prometheus.Counter
	SearchTicks         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "joins_total",
			Help:      "Queue entries created, by format.",
		}, []string{"format"}),
		QueueLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "leaves_total",
			Help:      "Queue entries removed by their owner.",
		}),
		FormationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "formation_attempts_total",
			Help:      "Group formation attempts, by result (formed, waiting, conflict, error).",
		}, []string{"result"}),
		FormationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "formation_conflicts_total",
			Help:      "Formation commits rejected because a queue entry was already consumed.",
		}),
		MatchesFormed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "matches_formed_total",
			Help:      "Matches created by group formation, by format.",
		}, []string{"format"}),
		SystemMessageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "system_message_errors_total",
			Help:      "System messages that could not be delivered.",
		}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_errors_total",
			Help:      "Domain events that could not be published.",
		}),
		SearchTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "search_ticks_total",
			Help:      "Polling ticks run by search sessions, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.QueueJoins,
		m.QueueLeaves,
		m.FormationAttempts,
		m.FormationConflicts,
		m.MatchesFormed,
		m.SystemMessageErrors,
		m.EventPublishErrors,
		m.SearchTicks,
	)
	return m
}

// Handler serves the metrics registered in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) QueueJoined(format string) {
	if m == nil {
		return
	}
	m.QueueJoins.WithLabelValues(format).Inc()
}

func (m *Metrics) QueueLeft() {
	if m == nil {
		return
	}
	m.QueueLeaves.Inc()
}

// FormationResult records the outcome of one formation attempt.
func (m *Metrics) FormationResult(result string) {
	if m == nil {
		return
	}
	m.FormationAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) FormationConflict() {
	if m == nil {
		return
	}
	m.FormationConflicts.Inc()
}

func (m *Metrics) MatchFormed(format string) {
	if m == nil {
		return
	}
	m.MatchesFormed.WithLabelValues(format).Inc()
}

func (m *Metrics) SystemMessageFailed() {
	if m == nil {
		return
	}
	m.SystemMessageErrors.Inc()
}

func (m *Metrics) EventPublishFailed() {
	if m == nil {
		return
	}
	m.EventPublishErrors.Inc()
}

func (m *Metrics) SearchTick(outcome string) {
	if m == nil {
		return
	}
	m.SearchTicks.WithLabelValues(outcome).Inc()
}
