package reinforcement

import (
	"testing"

	. "taxi/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExtractPolicy(t *testing.T) {
	Convey("Given a solved 2x2 taxi world", t, func() {
		cfg := smallConfig()
		grid := cfg.Grid()
		states := GenerateStates(grid)
		model := newFixedModel(grid, Location{X: 1, Y: 1})
		result, err := Solve(states, Actions(), model, cfg, nil)
		So(err, ShouldBeNil)

		policy, err := ExtractPolicy(states, Actions(), model, result.Values, cfg.Discount)
		So(err, ShouldBeNil)

		Convey("Every generated state has an action", func() {
			So(policy.Len(), ShouldEqual, len(states))
			for _, s := range states {
				_, ok := policy.Lookup(s)
				So(ok, ShouldBeTrue)
			}
		})

		Convey("The obvious moves are taken", func() {
			here := Location{X: 1, Y: 0}
			a, _ := policy.Lookup(State{Taxi: here, Passenger: WaitingAt(here, Location{X: 0, Y: 0})})
			So(a, ShouldEqual, Pickup)
			a, _ = policy.Lookup(State{Taxi: here, Passenger: Carrying(here)})
			So(a, ShouldEqual, Dropoff)
			a, _ = policy.Lookup(State{Taxi: Location{X: 0, Y: 0}, Passenger: Carrying(Location{X: 0, Y: 1})})
			So(a, ShouldEqual, North)
			a, _ = policy.Lookup(State{Taxi: Location{X: 1, Y: 1}, Passenger: Carrying(Location{X: 1, Y: 0})})
			So(a, ShouldEqual, South)
		})

		Convey("The statistics account for every state", func() {
			stats := policy.Stats()
			So(stats.States, ShouldEqual, len(states))

			var want [NUM_ACTIONS]int
			for _, s := range states {
				a, _ := policy.Lookup(s)
				want[a]++
			}
			So(stats.Counts, ShouldResemble, want)

			// One drop off per cell: the taxi carries a passenger to where it stands.
			So(stats.Counts[Dropoff], ShouldEqual, grid.NumCells())

			total, percent := 0, 0.0
			for _, a := range Actions() {
				total += stats.Counts[a]
				percent += stats.Percent(a)
			}
			So(total, ShouldEqual, len(states))
			So(percent, ShouldAlmostEqual, 100.0, 1e-9)
		})

		Convey("An empty policy has no statistics", func() {
			stats := (&Policy{}).Stats()
			So(stats.States, ShouldEqual, 0)
			So(stats.Percent(North), ShouldEqual, 0.0)
		})

		Convey("Unknown states are an explicit absent result", func() {
			stranger := State{Taxi: Location{X: 9, Y: 9}, Passenger: NoPassenger()}
			_, ok := policy.Lookup(stranger)
			So(ok, ShouldBeFalse)
			So(policy.ActionOr(stranger, West), ShouldEqual, West)
		})
	})
}

func TestTieBreaking(t *testing.T) {
	Convey("Given a synthetic value table with tied actions", t, func() {
		grid := NewGrid(2)
		states := GenerateStates(grid)
		index, err := NewStateIndex(states)
		So(err, ShouldBeNil)
		model := newFixedModel(grid, Location{X: 1, Y: 1})

		// A carried passenger bound for (1,1), taxi at (0,0): north and east both lead one step away.
		s := State{Taxi: Location{X: 0, Y: 0}, Passenger: Carrying(Location{X: 1, Y: 1})}
		northOf := State{Taxi: Location{X: 0, Y: 1}, Passenger: Carrying(Location{X: 1, Y: 1})}
		eastOf := State{Taxi: Location{X: 1, Y: 0}, Passenger: Carrying(Location{X: 1, Y: 1})}

		Convey("Exact ties resolve to the earliest action, every time", func() {
			values := NewValueTableFunc(index, func(st State) float64 {
				if st == northOf || st == eastOf {
					return 5
				}
				return 0
			})
			for i := 0; i < 20; i++ {
				policy, err := ExtractPolicy(states, Actions(), model, values, 0.9)
				So(err, ShouldBeNil)
				a, ok := policy.Lookup(s)
				So(ok, ShouldBeTrue)
				So(a, ShouldEqual, North)
			}
		})

		Convey("Differences inside the tolerance are still ties", func() {
			values := NewValueTableFunc(index, func(st State) float64 {
				switch st {
				case northOf:
					return 5
				case eastOf:
					return 5 + 1e-12
				}
				return 0
			})
			policy, err := ExtractPolicy(states, Actions(), model, values, 0.9)
			So(err, ShouldBeNil)
			a, _ := policy.Lookup(s)
			So(a, ShouldEqual, North)
		})

		Convey("A clear winner is chosen regardless of order", func() {
			values := NewValueTableFunc(index, func(st State) float64 {
				switch st {
				case northOf:
					return 5
				case eastOf:
					return 6
				}
				return 0
			})
			policy, err := ExtractPolicy(states, Actions(), model, values, 0.9)
			So(err, ShouldBeNil)
			a, _ := policy.Lookup(s)
			So(a, ShouldEqual, East)
		})

		Convey("An all-zero table ties every movement, so every empty taxi heads north", func() {
			policy, err := ExtractPolicy(states, Actions(), model, NewValueTable(index), 0.9)
			So(err, ShouldBeNil)
			for _, loc := range grid.Cells() {
				a, _ := policy.Lookup(State{Taxi: loc, Passenger: NoPassenger()})
				So(a, ShouldEqual, North)
			}
		})
	})
}
