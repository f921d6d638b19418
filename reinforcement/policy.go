package reinforcement

import (
	"fmt"

	. "taxi/grid_world"
)

// TieTolerance is how close two Q values must be to count as tied. Ties go to the action
// that comes first in the action order.
const TieTolerance = 1e-9

// Policy maps states to actions. It is derived once from a value table and never modified.
// A state missing from the policy is an explicit absent result, see Lookup.
type Policy struct {
	actions map[State]Action
	q       map[State]float64
}

// ExtractPolicy picks, for every state, the action maximizing the same Bellman backup the
// solver uses, evaluated once against @values.
func ExtractPolicy(
	states []State,
	actions []Action,
	model TransitionModel,
	values *ValueTable,
	discount float64,
) (*Policy, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: no actions", ErrInvalidConfig)
	}
	if values == nil {
		return nil, fmt.Errorf("%w: no value table", ErrInvalidConfig)
	}
	trans, err := compileTransitions(values.Index(), states, actions, model)
	if err != nil {
		return nil, fmt.Errorf("compile transitions: %w", err)
	}

	policy := &Policy{
		actions: make(map[State]Action, len(states)),
		q:       make(map[State]float64, len(states)),
	}
	for i, s := range states {
		a, q := trans.argmaxQ(i, values.values, discount, TieTolerance)
		policy.actions[s] = actions[a]
		policy.q[s] = q
	}
	return policy, nil
}

// Lookup returns the policy action of @s. The boolean is false when the policy has no entry
// for @s; consumers must handle that case with a fallback rather than fail.
func (p *Policy) Lookup(s State) (Action, bool) {
	a, ok := p.actions[s]
	return a, ok
}

// ActionOr returns the policy action of @s, or @fallback if the policy has none.
func (p *Policy) ActionOr(s State, fallback Action) Action {
	if a, ok := p.actions[s]; ok {
		return a
	}
	return fallback
}

// Q returns the backed-up value of the chosen action in @s.
func (p *Policy) Q(s State) (float64, bool) {
	q, ok := p.q[s]
	return q, ok
}

func (p *Policy) Len() int {
	return len(p.actions)
}

// PolicyStats tallies how many states choose each action.
type PolicyStats struct {
	States int
	Counts [NUM_ACTIONS]int
}

// Stats counts the policy's actions over every state it covers.
func (p *Policy) Stats() PolicyStats {
	stats := PolicyStats{States: len(p.actions)}
	for _, a := range p.actions {
		if a >= 0 && int(a) < NUM_ACTIONS {
			stats.Counts[a]++
		}
	}
	return stats
}

// Percent is the share of states choosing @a, in [0,100].
func (ps PolicyStats) Percent(a Action) float64 {
	if ps.States == 0 || a < 0 || int(a) >= NUM_ACTIONS {
		return 0
	}
	return 100 * float64(ps.Counts[a]) / float64(ps.States)
}
