package reinforcement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sweepsTotal counts completed value iteration sweeps
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxi_solver_sweeps_total",
		Help: "Total value iteration sweeps over the state space",
	})

	// sweepDuration tracks the wall time of a single sweep
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taxi_solver_sweep_duration_seconds",
		Help:    "Duration of one value iteration sweep in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	})

	// lastMaxDelta is the sup-norm value change of the latest sweep
	lastMaxDelta = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taxi_solver_max_delta",
		Help: "Largest absolute value change in the most recent sweep",
	})

	// solvesTotal counts finished solver runs by outcome
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxi_solver_runs_total",
		Help: "Total solver runs by terminal status",
	}, []string{"status"})
)
