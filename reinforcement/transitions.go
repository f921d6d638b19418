package reinforcement

import (
	"fmt"
	"math"

	. "taxi/grid_world"
)

type indexedOutcome struct {
	next int
	prob float64
}

// transitions is the model evaluated once for every (state, action) pair, with successors
// resolved to value indices, so that sweeps do no map lookups or allocations.
// Row i*numActions+a holds the reward and outcomes of actions[a] in states[i].
type transitions struct {
	actions    []Action
	numActions int
	rewards    []float64
	outcomes   [][]indexedOutcome
}

func compileTransitions(
	index *StateIndex,
	states []State,
	actions []Action,
	model TransitionModel,
) (*transitions, error) {
	numActions := len(actions)
	trans := &transitions{
		actions:    actions,
		numActions: numActions,
		rewards:    make([]float64, len(states)*numActions),
		outcomes:   make([][]indexedOutcome, len(states)*numActions),
	}

	for i, s := range states {
		for a, action := range actions {
			reward, dist := model.Step(s, action)
			row := make([]indexedOutcome, 0, len(dist))
			for _, o := range dist {
				next, ok := index.Index(o.State)
				if !ok {
					return nil, fmt.Errorf("%v in %v leads to unknown state %v", action, s, o.State)
				}
				row = append(row, indexedOutcome{next: next, prob: o.Probability})
			}
			trans.rewards[i*numActions+a] = reward
			trans.outcomes[i*numActions+a] = row
		}
	}
	return trans, nil
}

// q is the Bellman backup of one (state, action) pair against @values:
// r(s,a) + gamma * sum_s' P(s'|s,a) V(s').
func (t *transitions) q(i, a int, values []float64, discount float64) float64 {
	row := i*t.numActions + a
	expected := 0.0
	for _, o := range t.outcomes[row] {
		expected += o.prob * values[o.next]
	}
	return t.rewards[row] + discount*expected
}

// maxQ returns max_a Q(s,a).
func (t *transitions) maxQ(i int, values []float64, discount float64) float64 {
	best := t.q(i, 0, values, discount)
	for a := 1; a < t.numActions; a++ {
		if q := t.q(i, a, values, discount); q > best {
			best = q
		}
	}
	return best
}

// argmaxQ returns the first action whose Q is within @tolerance of the best, so that
// ties resolve to the earliest action in order.
func (t *transitions) argmaxQ(i int, values []float64, discount, tolerance float64) (int, float64) {
	qs := make([]float64, t.numActions)
	best := math.Inf(-1)
	for a := range qs {
		qs[a] = t.q(i, a, values, discount)
		best = math.Max(best, qs[a])
	}
	for a, q := range qs {
		if q >= best-tolerance {
			return a, q
		}
	}
	// Only reachable when every Q is NaN.
	return 0, qs[0]
}
