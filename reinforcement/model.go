package reinforcement

import (
	"math/rand"

	. "taxi/grid_world"
)

// Outcome is a successor state and the probability of reaching it.
type Outcome struct {
	State       State
	Probability float64
}

// Distribution is a discrete distribution over successor states. Each state appears at most once.
type Distribution []Outcome

// Total is the probability mass of the distribution, 1.0 for a well formed distribution.
func (d Distribution) Total() (total float64) {
	for _, o := range d {
		total += o.Probability
	}
	return
}

// Probability returns the probability of reaching @s, zero if it is not an outcome.
func (d Distribution) Probability(s State) float64 {
	for _, o := range d {
		if o.State == s {
			return o.Probability
		}
	}
	return 0
}

// Sample draws an outcome using @rng.
func (d Distribution) Sample(rng *rand.Rand) State {
	u := rng.Float64()
	cum := 0.0
	for _, o := range d {
		cum += o.Probability
		if u < cum {
			return o.State
		}
	}
	// Rounding may leave u just above the accumulated mass.
	return d[len(d)-1].State
}

// TransitionModel returns the immediate reward and successor distribution of an action.
type TransitionModel interface {
	Step(State, Action) (float64, Distribution)
}

// WeightedLocation is a destination and its share of the arrival probability.
type WeightedLocation struct {
	Location Location
	Weight   float64
}

// ArrivalModel decides where a newly arrived passenger wants to go.
type ArrivalModel interface {
	// Destinations returns the possible destinations of a passenger appearing at @origin,
	// with weights summing to one, or nothing if no passenger can appear there.
	Destinations(origin Location) []WeightedLocation
}

// SampledArrivals assigns every origin a single destination, drawn once, uniformly over
// all other locations. Arrivals are then a single probabilistic branch.
type SampledArrivals struct {
	dest map[Location]Location
}

// NewSampledArrivals draws the destinations from @rng, visiting origins in grid order, so a
// seeded source yields the same model every time.
func NewSampledArrivals(grid Grid, rng *rand.Rand) *SampledArrivals {
	cells := grid.Cells()
	sa := &SampledArrivals{dest: make(map[Location]Location, len(cells))}
	if len(cells) < 2 {
		return sa
	}
	for i, origin := range cells {
		// Draw from the n-1 other cells by skipping over the origin's own position.
		j := rng.Intn(len(cells) - 1)
		if j >= i {
			j++
		}
		sa.dest[origin] = cells[j]
	}
	return sa
}

// NewFixedArrivals uses the passed origin to destination assignment.
func NewFixedArrivals(dest map[Location]Location) *SampledArrivals {
	return &SampledArrivals{dest: dest}
}

// Destination returns the destination drawn for @origin.
func (sa *SampledArrivals) Destination(origin Location) (Location, bool) {
	d, ok := sa.dest[origin]
	return d, ok
}

func (sa *SampledArrivals) Destinations(origin Location) []WeightedLocation {
	if d, ok := sa.dest[origin]; ok {
		return []WeightedLocation{{Location: d, Weight: 1}}
	}
	return nil
}

// UniformArrivals spreads an arrival evenly over every location other than the origin.
type UniformArrivals struct {
	cells []Location
}

func NewUniformArrivals(grid Grid) *UniformArrivals {
	return &UniformArrivals{cells: grid.Cells()}
}

func (ua *UniformArrivals) Destinations(origin Location) (dests []WeightedLocation) {
	if len(ua.cells) < 2 {
		return nil
	}
	w := 1.0 / float64(len(ua.cells)-1)
	for _, loc := range ua.cells {
		if loc != origin {
			dests = append(dests, WeightedLocation{Location: loc, Weight: w})
		}
	}
	return
}

// TaxiModel is the taxi MDP: deterministic movement clamped to the grid, a possible passenger
// arrival after an empty taxi moves, and pickup/dropoff actions that only succeed in place.
type TaxiModel struct {
	grid        Grid
	rewards     Rewards
	arrivalProb float64
	arrivals    ArrivalModel
}

func NewTaxiModel(
	grid Grid,
	rewards Rewards,
	arrivalProb float64,
	arrivals ArrivalModel,
) *TaxiModel {
	return &TaxiModel{
		grid:        grid,
		rewards:     rewards,
		arrivalProb: arrivalProb,
		arrivals:    arrivals,
	}
}

func (m *TaxiModel) Grid() Grid {
	return m.grid
}

// Step returns the reward and successor distribution for taking @action in @state.
func (m *TaxiModel) Step(state State, action Action) (float64, Distribution) {
	switch action {
	case North, South, East, West:
		return m.rewards.Step, m.move(state, action)
	case Pickup:
		if state.Passenger.Status == Waiting && state.Passenger.Origin == state.Taxi {
			next := State{Taxi: state.Taxi, Passenger: Carrying(state.Passenger.Destination)}
			return m.rewards.Pickup, Distribution{{State: next, Probability: 1}}
		}
	case Dropoff:
		if state.Passenger.Status == InTransit && state.Passenger.Destination == state.Taxi {
			next := State{Taxi: state.Taxi, Passenger: NoPassenger()}
			return m.rewards.Dropoff, Distribution{{State: next, Probability: 1}}
		}
	}
	return m.rewards.Invalid, Distribution{{State: state, Probability: 1}}
}

// move displaces the taxi, staying in place at the boundary. Only a taxi that was empty
// before moving may be hailed, at its new location.
func (m *TaxiModel) move(state State, action Action) Distribution {
	taxi := state.Taxi.Add(action.Offset())
	if !m.grid.WithinGrid(taxi) {
		taxi = state.Taxi
	}

	next := State{Taxi: taxi, Passenger: state.Passenger}
	if state.Passenger.Status != Empty || m.arrivalProb == 0 {
		return Distribution{{State: next, Probability: 1}}
	}

	dests := m.arrivals.Destinations(taxi)
	if len(dests) == 0 {
		return Distribution{{State: next, Probability: 1}}
	}

	dist := make(Distribution, 0, len(dests)+1)
	if stay := 1 - m.arrivalProb; stay > 0 {
		dist = append(dist, Outcome{State: next, Probability: stay})
	}
	for _, d := range dests {
		dist = append(dist, Outcome{
			State:       State{Taxi: taxi, Passenger: WaitingAt(taxi, d.Location)},
			Probability: m.arrivalProb * d.Weight,
		})
	}
	return dist
}
