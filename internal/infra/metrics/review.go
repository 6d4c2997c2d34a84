package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reviewActionsTotal, auditWriteFailures) }

var reviewActionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "curation_review_actions_total",
		Help: "Review workflow transitions, labeled by action and outcome.",
	},
	[]string{"action", "outcome"}, // outcome: 'ok', 'invalid', 'not_found', 'conflict', 'error'
)

var auditWriteFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "curation_audit_write_failures_total",
		Help: "Audit sink writes that failed and were dropped.",
	},
)

func IncReviewAction(action, outcome string) {
	reviewActionsTotal.WithLabelValues(norm(action), norm(outcome)).Inc()
}

func IncAuditWriteFailure() {
	auditWriteFailures.Inc()
}
