package grid_world

import (
	"fmt"
	"strings"
)

// Location is an x/y grid cell. The orientation matches a console print flipped vertically:
// (0,0) is the bottom left cell, +x is east and +y is north.
type Location struct {
	X, Y int
}

func (loc Location) String() string {
	return fmt.Sprintf("(%d,%d)", loc.X, loc.Y)
}

// Add returns the location displaced by the passed offset. The result may be off the grid.
func (loc Location) Add(dx, dy int) Location {
	return Location{X: loc.X + dx, Y: loc.Y + dy}
}

// Grid is an NxN taxi world.
type Grid struct {
	Size int
}

func NewGrid(size int) Grid {
	return Grid{Size: size}
}

// WithinGrid reports whether both coordinates lie in [0, Size).
func (g Grid) WithinGrid(loc Location) bool {
	return 0 <= loc.X && loc.X < g.Size && 0 <= loc.Y && loc.Y < g.Size
}

// NumCells is the number of grid locations, N^2.
func (g Grid) NumCells() int {
	return g.Size * g.Size
}

// Cells returns every location, x outer and y inner.
func (g Grid) Cells() []Location {
	cells := make([]Location, 0, g.NumCells())
	for x := 0; x < g.Size; x++ {
		for y := 0; y < g.Size; y++ {
			cells = append(cells, Location{X: x, Y: y})
		}
	}
	return cells
}

// PassengerStatus tags the Passenger variant.
type PassengerStatus int

const (
	Empty PassengerStatus = iota
	Waiting
	InTransit
)

func (ps PassengerStatus) String() string {
	switch ps {
	case Empty:
		return "empty"
	case Waiting:
		return "waiting"
	case InTransit:
		return "in_transit"
	}
	return fmt.Sprintf("PassengerStatus(%d)", int(ps))
}

// Passenger is a tagged variant: Empty, Waiting(origin, destination) or InTransit(destination).
// Fields unused by a variant are always zero, so that struct equality is variant equality.
// Always construct passengers with NoPassenger, WaitingAt or Carrying.
type Passenger struct {
	Status      PassengerStatus
	Origin      Location
	Destination Location
}

func NoPassenger() Passenger {
	return Passenger{Status: Empty}
}

func WaitingAt(origin, destination Location) Passenger {
	return Passenger{Status: Waiting, Origin: origin, Destination: destination}
}

func Carrying(destination Location) Passenger {
	return Passenger{Status: InTransit, Destination: destination}
}

func (p Passenger) String() string {
	switch p.Status {
	case Waiting:
		return fmt.Sprintf("waiting%v->%v", p.Origin, p.Destination)
	case InTransit:
		return fmt.Sprintf("in_transit->%v", p.Destination)
	}
	return "empty"
}

// State is the taxi location and passenger status. States are comparable values
// and are used directly as map keys.
type State struct {
	Taxi      Location
	Passenger Passenger
}

func (s State) String() string {
	return s.Taxi.String() + "|" + s.Passenger.String()
}

// Action is one of the six taxi actions. The declaration order is the total order
// used for tie-breaking.
type Action int

const (
	North Action = iota
	South
	East
	West
	Pickup
	Dropoff
	NUM_ACTIONS = 6
)

var actionNames = [NUM_ACTIONS]string{"north", "south", "east", "west", "pickup", "dropoff"}

// Actions returns all actions in tie-break order.
func Actions() []Action {
	return []Action{North, South, East, West, Pickup, Dropoff}
}

func (a Action) String() string {
	if a < 0 || int(a) >= NUM_ACTIONS {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction is the inverse of String.
func ParseAction(name string) (Action, error) {
	for i, an := range actionNames {
		if strings.EqualFold(an, name) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// IsMovement is true for the four compass actions.
func (a Action) IsMovement() bool {
	return a == North || a == South || a == East || a == West
}

// Offset returns the unit displacement of a movement action, and zero for pickup and dropoff.
func (a Action) Offset() (dx, dy int) {
	switch a {
	case North:
		dy = 1
	case South:
		dy = -1
	case East:
		dx = 1
	case West:
		dx = -1
	}
	return
}

// StateCount is the closed form size of the state space: N^2 + N^6 + N^4.
func StateCount(n int) int {
	n2 := n * n
	return n2 + n2*n2*n2 + n2*n2
}

// GenerateStates enumerates every state exactly once. The order is fixed: taxi location
// outer, then Empty, then each Waiting (origin outer, destination inner), then each InTransit.
func GenerateStates(grid Grid) (states []State) {
	cells := grid.Cells()
	states = make([]State, 0, StateCount(grid.Size))
	for _, taxi := range cells {
		states = append(states, State{Taxi: taxi, Passenger: NoPassenger()})
		for _, origin := range cells {
			for _, dest := range cells {
				states = append(states, State{Taxi: taxi, Passenger: WaitingAt(origin, dest)})
			}
		}
		for _, dest := range cells {
			states = append(states, State{Taxi: taxi, Passenger: Carrying(dest)})
		}
	}
	return
}

// StateIndex maps states to their dense position in a generated state sequence.
// It is read-only after construction and safe to share between goroutines.
type StateIndex struct {
	states []State
	index  map[State]int
}

// NewStateIndex indexes the passed states. Duplicate states are reported as an error.
func NewStateIndex(states []State) (*StateIndex, error) {
	si := &StateIndex{
		states: states,
		index:  make(map[State]int, len(states)),
	}
	for i, s := range states {
		if _, ok := si.index[s]; ok {
			return nil, fmt.Errorf("duplicate state %v at position %d", s, i)
		}
		si.index[s] = i
	}
	return si, nil
}

// Index returns the position of the state, or false if it was never generated.
func (si *StateIndex) Index(s State) (int, bool) {
	i, ok := si.index[s]
	return i, ok
}

func (si *StateIndex) Len() int {
	return len(si.states)
}

// At returns the i'th state in generation order.
func (si *StateIndex) At(i int) State {
	return si.states[i]
}

// States returns the indexed states in generation order. Callers must not modify it.
func (si *StateIndex) States() []State {
	return si.states
}

// Visit calls fn for every state in generation order.
func Visit(states []State, fn func(i int, s State)) {
	for i, s := range states {
		fn(i, s)
	}
}
