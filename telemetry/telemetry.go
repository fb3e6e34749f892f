// Package telemetry exposes Prometheus counters and histograms describing
// the positioning pipeline's run-time health: epochs processed, solution
// status distribution, and ambiguity fix ratio.
//
// Grounded on FengXuebin-gnssgo's Sol/SolStat status bookkeeping
// (types.go's SOLQ_* enum and postpos.go's solution-writing loop),
// exported here as Prometheus metrics instead of a log/report file.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EpochsProcessed counts epochs the pipeline has attempted to solve.
var EpochsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "gnsscore",
	Name:      "epochs_processed_total",
	Help:      "Total number of epochs submitted to the positioning pipeline.",
})

// SolutionsByStatus counts solved epochs by their resulting fix status
// (none, single, dgps, float, fix, sbas, ppp, dr).
var SolutionsByStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gnsscore",
	Name:      "solutions_total",
	Help:      "Total number of epochs resolved, by solution status.",
}, []string{"status"})

// AmbiguityResolutionAttempts counts LAMBDA search invocations by outcome
// (fixed, rejected).
var AmbiguityResolutionAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gnsscore",
	Name:      "ambiguity_resolution_attempts_total",
	Help:      "Total number of integer ambiguity resolution attempts, by outcome.",
}, []string{"outcome"})

// FilterInnovationChi2 is a histogram for the normalized innovation
// statistic of Kalman measurement updates. It is registered, but no code in
// this module observes values into it.
var FilterInnovationChi2 = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gnsscore",
	Name:      "filter_innovation_chi2",
	Help:      "Normalized innovation chi-square statistic per measurement update.",
	Buckets:   prometheus.DefBuckets,
})

// SolveDuration is a histogram for wall-clock time per epoch solve. It is
// registered, but no code in this module observes values into it.
var SolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gnsscore",
	Name:      "solve_duration_seconds",
	Help:      "Time spent solving a single epoch.",
	Buckets:   prometheus.DefBuckets,
})

func init() {
	prometheus.MustRegister(
		EpochsProcessed,
		SolutionsByStatus,
		AmbiguityResolutionAttempts,
		FilterInnovationChi2,
		SolveDuration,
	)
}
