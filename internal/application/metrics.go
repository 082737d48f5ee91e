package application

import "github.com/prometheus/client_golang/prometheus"

var (
	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "community_gate",
		Subsystem: "curfew",
		Name:      "evaluations_total",
		Help:      "Total gate curfew evaluations by outcome.",
	}, []string{"outcome"}) // "restricted", "clear", "error"

	skippedRulesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "community_gate",
		Subsystem: "curfew",
		Name:      "skipped_rules_total",
		Help:      "Malformed curfew rules skipped during evaluation, by reason.",
	}, []string{"reason"})

	snapshotLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "community_gate",
		Subsystem: "curfew",
		Name:      "snapshot_loads_total",
		Help:      "Tenant curfew snapshot loads by result.",
	}, []string{"result"}) // "success", "failure", "stale"

	evaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "community_gate",
		Subsystem: "curfew",
		Name:      "evaluation_duration_seconds",
		Help:      "Gate curfew evaluation latency in seconds, including snapshot loads.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	cachedTenants = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "community_gate",
		Subsystem: "curfew",
		Name:      "cached_tenants",
		Help:      "Number of tenant curfew snapshots held in memory.",
	})
)

func init() {
	prometheus.MustRegister(
		evaluationsTotal,
		skippedRulesTotal,
		snapshotLoadsTotal,
		evaluationDuration,
		cachedTenants,
	)
}
