package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_decisions_total",
		Help: "Total number of WAF decisions by action",
	}, []string{"action"})
	evaluatorTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_evaluator_timeouts_total",
		Help: "Total number of evaluator timeouts resolved fail-open",
	}, []string{"evaluator"})
	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aegis_events_dropped_total",
		Help: "Total number of security events dropped under queue backpressure",
	})
	eventsLogged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aegis_events_logged_total",
		Help: "Total number of security events persisted",
	})
	promotionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_rule_promotions_total",
		Help: "Total number of rule deployment transitions by target phase",
	}, []string{"phase"})
	snapshotFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aegis_snapshot_refresh_failures_total",
		Help: "Total number of rule snapshot refresh failures",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(decisionsTotal, evaluatorTimeouts, eventsDropped, eventsLogged, promotionsTotal, snapshotFailures)
}

// IncDecision increments the decision counter for the given action.
func IncDecision(action string) { decisionsTotal.WithLabelValues(action).Inc() }

// IncEvaluatorTimeout increments the timeout counter for the given evaluator.
func IncEvaluatorTimeout(evaluator string) { evaluatorTimeouts.WithLabelValues(evaluator).Inc() }

// IncEventDropped increments the dropped events counter.
func IncEventDropped() { eventsDropped.Inc() }

// IncEventLogged increments the persisted events counter.
func IncEventLogged() { eventsLogged.Inc() }

// IncPromotion increments the promotion counter for the given target phase.
func IncPromotion(phase string) { promotionsTotal.WithLabelValues(phase).Inc() }

// IncSnapshotFailure increments the snapshot refresh failure counter.
func IncSnapshotFailure() { snapshotFailures.Inc() }
