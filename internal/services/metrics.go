package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// resolutionsTotal counts resolve attempts by decision and outcome
	// (resolved, replayed, already_resolved, conflict, invalid, error).
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "takedown_resolutions_total",
			Help: "Takedown resolve attempts by decision and outcome.",
		},
		[]string{"decision", "outcome"},
	)

	// idempotencyReplays counts responses served from the ledger.
	idempotencyReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_replays_total",
			Help: "Responses replayed from the idempotency ledger.",
		},
	)
)

func init() {
	prometheus.MustRegister(resolutionsTotal, idempotencyReplays)
}
