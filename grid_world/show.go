package grid_world

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// The console views project the state space down to the taxi's x/y position by showing only
// the empty-taxi slice, which is where the agent spends most of its time cruising for fares.
// Rows are printed top down so that north is up.

// ValueFunc returns the value of a state, or false if the state has none.
type ValueFunc func(State) (float64, bool)

// ActionFunc returns the policy action of a state, or false if the state has none.
type ActionFunc func(State) (Action, bool)

// Console writes colored grids. Colors may be disabled for plain text output.
type Console struct {
	au aurora.Aurora
	w  io.Writer
}

func NewConsole(w io.Writer, colors bool) *Console {
	return &Console{
		au: aurora.NewAurora(colors),
		w:  w,
	}
}

// ShowValues prints the empty-taxi values of each cell.
func (c *Console) ShowValues(grid Grid, valueOf ValueFunc) {
	for y := grid.Size - 1; y >= 0; y-- {
		for x := 0; x < grid.Size; x++ {
			s := State{Taxi: Location{X: x, Y: y}, Passenger: NoPassenger()}
			if val, ok := valueOf(s); ok {
				fmt.Fprint(c.w, c.au.Blue(fmt.Sprintf("%7.2f ", val)))
			} else {
				fmt.Fprint(c.w, c.au.Red(fmt.Sprintf("%7s ", "?")))
			}
			fmt.Fprint(c.w, c.au.White("|"))
		}
		fmt.Fprintln(c.w)
	}
}

// ShowPolicy prints the empty-taxi policy as arrows, with '?' for cells whose state has no action.
func (c *Console) ShowPolicy(grid Grid, actionOf ActionFunc) {
	for y := grid.Size - 1; y >= 0; y-- {
		for x := 0; x < grid.Size; x++ {
			s := State{Taxi: Location{X: x, Y: y}, Passenger: NoPassenger()}
			if action, ok := actionOf(s); ok {
				fmt.Fprint(c.w, c.au.Green(string(ActionRune(action))))
			} else {
				fmt.Fprint(c.w, c.au.Red("?"))
			}
		}
		fmt.Fprintln(c.w)
	}
}

// ShowState prints the grid with the taxi, the waiting passenger and the destination marked:
// T taxi, P passenger origin, D destination.
func (c *Console) ShowState(grid Grid, s State) {
	for y := grid.Size - 1; y >= 0; y-- {
		for x := 0; x < grid.Size; x++ {
			loc := Location{X: x, Y: y}
			switch {
			case loc == s.Taxi:
				fmt.Fprint(c.w, c.au.Yellow("T"))
			case s.Passenger.Status == Waiting && loc == s.Passenger.Origin:
				fmt.Fprint(c.w, c.au.Green("P"))
			case s.Passenger.Status != Empty && loc == s.Passenger.Destination:
				fmt.Fprint(c.w, c.au.Magenta("D"))
			default:
				fmt.Fprint(c.w, ".")
			}
		}
		fmt.Fprintln(c.w)
	}
	fmt.Fprintln(c.w, s.Passenger)
}

// ActionRune returns a single character depiction of an action.
func ActionRune(a Action) rune {
	switch a {
	case North:
		return '^'
	case South:
		return 'v'
	case East:
		return '>'
	case West:
		return '<'
	case Pickup:
		return 'P'
	case Dropoff:
		return 'D'
	}
	return '?'
}
