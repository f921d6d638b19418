package reinforcement

import (
	"math/rand"

	. "taxi/grid_world"
)

// Step is a single time step of the taxi: do action a in state s, observe reward r and successor s'.
type Step struct {
	State     State
	Action    Action
	Reward    float64
	Successor State
}

// Episode is a sequence of Steps.
type Episode []Step

// Return is the undiscounted sum of rewards.
func (ep Episode) Return() (total float64) {
	for _, step := range ep {
		total += step.Reward
	}
	return
}

// Rollout follows @policy from @start for @steps steps, drawing successors from the model's
// distributions with @rng. States without a policy entry take @fallback. A non-positive
// @steps yields an empty episode.
// Rollouts exist to animate a policy; they are never used to estimate values.
func Rollout(
	model TransitionModel,
	policy *Policy,
	start State,
	steps int,
	rng *rand.Rand,
	fallback Action,
) (episode Episode) {
	if steps <= 0 {
		return Episode{}
	}
	episode = make(Episode, 0, steps)
	state := start
	for i := 0; i < steps; i++ {
		action := policy.ActionOr(state, fallback)
		reward, dist := model.Step(state, action)
		successor := dist.Sample(rng)
		episode = append(episode, Step{
			State:     state,
			Action:    action,
			Reward:    reward,
			Successor: successor,
		})
		state = successor
	}
	return
}
