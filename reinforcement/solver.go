package reinforcement

/*
Value iteration over the full taxi state space. Each sweep is a pure function of the previous
value table: every state's backup reads only V_k and writes only V_k+1. The sweep is split
into contiguous chunks of states, one goroutine per chunk, which is safe for exactly that
reason; no goroutine ever reads a slot another goroutine writes in the same sweep. The only
shared write is the sweep-wide max delta, which is folded in atomically once per chunk.

Non-convergence is not an error. A run that hits MaxIterations reports Converged=false along
with the last table, which is often still useful, and the caller decides what to do about it.
*/

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"taxi/atomic_float"
	. "taxi/grid_world"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNonFinite is returned if a backup produces NaN or an infinity.
var ErrNonFinite = errors.New("value iteration produced a non-finite value")

// SolverStatus is the solver's state machine: Running until one of the two terminal states.
type SolverStatus int

const (
	Running SolverStatus = iota
	Converged
	ExhaustedIterations
)

func (ss SolverStatus) String() string {
	switch ss {
	case Running:
		return "running"
	case Converged:
		return "converged"
	case ExhaustedIterations:
		return "exhausted_iterations"
	}
	return fmt.Sprintf("SolverStatus(%d)", int(ss))
}

// Result is the outcome of a solver run.
type Result struct {
	RunID      uuid.UUID
	Values     *ValueTable
	Iterations int
	Status     SolverStatus
	Converged  bool
	// History holds the max delta of every sweep, in order.
	History []float64
}

// Progress is reported periodically while solving. Values is the table produced by the
// reported sweep and is never modified afterward.
type Progress struct {
	RunID     uuid.UUID
	Iteration int
	MaxDelta  float64
	Status    SolverStatus
	Values    *ValueTable
}

// ProgressFunc is a callback by which the solver lends progress details. It is synchronous
// and should complete quickly; it runs between sweeps, never during one.
type ProgressFunc func(Progress)

// Solve runs value iteration over @states until the largest per-state change of a sweep
// falls below cfg.Threshold, or cfg.MaxIterations sweeps have run.
// Invalid configuration is rejected before the first sweep.
func Solve(
	states []State,
	actions []Action,
	model TransitionModel,
	cfg SolverConfig,
	progressFn ProgressFunc,
) (*Result, error) {
	if err := cfg.validateSolver(); err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no states", ErrInvalidConfig)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: no actions", ErrInvalidConfig)
	}

	index, err := NewStateIndex(states)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	trans, err := compileTransitions(index, states, actions, model)
	if err != nil {
		return nil, fmt.Errorf("compile transitions: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	result := &Result{
		RunID:   uuid.New(),
		Status:  Running,
		History: make([]float64, 0, min(cfg.MaxIterations, 1024)),
	}
	logger := slog.Default().With("run", result.RunID.String())
	logger.Info("value iteration starting",
		"states", len(states),
		"actions", len(actions),
		"discount", cfg.Discount,
		"threshold", cfg.Threshold,
		"max_iterations", cfg.MaxIterations,
		"workers", workers)

	cur := make([]float64, len(states))
	for k := 0; k < cfg.MaxIterations; k++ {
		next := make([]float64, len(states))
		start := time.Now()
		maxDelta, err := sweep(trans, cur, next, cfg.Discount, workers)
		if err != nil {
			return nil, fmt.Errorf("sweep %d: %w", k+1, err)
		}
		sweepDuration.Observe(time.Since(start).Seconds())
		sweepsTotal.Inc()
		lastMaxDelta.Set(maxDelta)

		cur = next
		result.Iterations = k + 1
		result.History = append(result.History, maxDelta)

		if maxDelta < cfg.Threshold {
			result.Status = Converged
		} else if k+1 == cfg.MaxIterations {
			result.Status = ExhaustedIterations
		}

		terminal := result.Status != Running
		if terminal || (cfg.ProgressEvery > 0 && (k+1)%cfg.ProgressEvery == 0) {
			logger.Info("value iteration progress",
				"iteration", k+1,
				"max_delta", maxDelta,
				"status", result.Status.String())
			if progressFn != nil {
				progressFn(Progress{
					RunID:     result.RunID,
					Iteration: k + 1,
					MaxDelta:  maxDelta,
					Status:    result.Status,
					Values:    &ValueTable{index: index, values: cur},
				})
			}
		}
		if terminal {
			break
		}
	}

	result.Values = &ValueTable{index: index, values: cur}
	result.Converged = result.Status == Converged
	solvesTotal.WithLabelValues(result.Status.String()).Inc()
	if !result.Converged {
		logger.Warn("value iteration did not converge",
			"iterations", result.Iterations,
			"max_delta", result.History[len(result.History)-1])
	}
	return result, nil
}

// sweep writes max_a Q(s,a) against @cur into @next for every state and returns
// max_s |next(s) - cur(s)|. @cur is only read.
func sweep(
	trans *transitions,
	cur, next []float64,
	discount float64,
	workers int,
) (float64, error) {
	n := len(cur)
	chunk := (n + workers - 1) / workers
	maxDelta := atomic_float.NewAtomicFloat64(0)

	group := errgroup.Group{}
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		group.Go(func() error {
			local := 0.0
			for i := lo; i < hi; i++ {
				v := trans.maxQ(i, cur, discount)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%w: state %d", ErrNonFinite, i)
				}
				next[i] = v
				if delta := math.Abs(v - cur[i]); delta > local {
					local = delta
				}
			}
			maxDelta.AtomicMax(local)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return maxDelta.AtomicRead(), nil
}
