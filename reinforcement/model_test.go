package reinforcement

import (
	"math/rand"
	"testing"

	. "taxi/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

// newFixedModel returns a model whose arrivals at every location go to @dest, or to (0,0) when
// the arrival origin is @dest itself.
func newFixedModel(grid Grid, dest Location) *TaxiModel {
	assignment := map[Location]Location{}
	for _, loc := range grid.Cells() {
		if loc == dest {
			assignment[loc] = Location{X: 0, Y: 0}
		} else {
			assignment[loc] = dest
		}
	}
	return NewTaxiModel(grid, DefaultRewards(), 0.2, NewFixedArrivals(assignment))
}

func TestMovement(t *testing.T) {
	Convey("When moving the taxi", t, func() {
		grid := NewGrid(3)
		model := newFixedModel(grid, Location{X: 2, Y: 2})

		Convey("Outcome probabilities sum to one for every state and movement action", func() {
			uniform := NewTaxiModel(grid, DefaultRewards(), 0.2, NewUniformArrivals(grid))
			sampled := NewTaxiModel(grid, DefaultRewards(), 0.2, NewSampledArrivals(grid, rand.New(rand.NewSource(7))))
			for _, m := range []*TaxiModel{model, uniform, sampled} {
				for _, s := range GenerateStates(grid) {
					for _, a := range []Action{North, South, East, West} {
						reward, dist := m.Step(s, a)
						So(reward, ShouldEqual, -1.0)
						So(dist.Total(), ShouldAlmostEqual, 1.0, 1e-9)
					}
				}
			}
		})

		Convey("An empty taxi may be hailed at its new location", func() {
			s := State{Taxi: Location{X: 1, Y: 1}, Passenger: NoPassenger()}
			reward, dist := model.Step(s, North)
			So(reward, ShouldEqual, -1.0)
			So(dist, ShouldHaveLength, 2)

			moved := Location{X: 1, Y: 2}
			So(dist.Probability(State{Taxi: moved, Passenger: NoPassenger()}), ShouldAlmostEqual, 0.8)
			hailed := State{Taxi: moved, Passenger: WaitingAt(moved, Location{X: 2, Y: 2})}
			So(dist.Probability(hailed), ShouldAlmostEqual, 0.2)
		})

		Convey("An occupied or hailed taxi moves deterministically", func() {
			for _, p := range []Passenger{
				WaitingAt(Location{X: 0, Y: 0}, Location{X: 2, Y: 1}),
				Carrying(Location{X: 2, Y: 1}),
			} {
				s := State{Taxi: Location{X: 1, Y: 1}, Passenger: p}
				_, dist := model.Step(s, East)
				So(dist, ShouldHaveLength, 1)
				So(dist[0].State, ShouldResemble, State{Taxi: Location{X: 2, Y: 1}, Passenger: p})
				So(dist[0].Probability, ShouldEqual, 1.0)
			}
		})

		Convey("Moving off the grid leaves the taxi in place", func() {
			s := State{Taxi: Location{X: 0, Y: 0}, Passenger: Carrying(Location{X: 1, Y: 1})}
			_, dist := model.Step(s, West)
			So(dist[0].State.Taxi, ShouldResemble, Location{X: 0, Y: 0})
			_, dist = model.Step(s, South)
			So(dist[0].State.Taxi, ShouldResemble, Location{X: 0, Y: 0})

			corner := State{Taxi: Location{X: 2, Y: 2}, Passenger: Carrying(Location{X: 1, Y: 1})}
			_, dist = model.Step(corner, North)
			So(dist[0].State, ShouldResemble, corner)
			_, dist = model.Step(corner, East)
			So(dist[0].State, ShouldResemble, corner)
		})

		Convey("A clamped empty taxi may still be hailed where it stands", func() {
			s := State{Taxi: Location{X: 0, Y: 0}, Passenger: NoPassenger()}
			_, dist := model.Step(s, West)
			So(dist, ShouldHaveLength, 2)
			So(dist.Probability(State{
				Taxi:      Location{X: 0, Y: 0},
				Passenger: WaitingAt(Location{X: 0, Y: 0}, Location{X: 2, Y: 2}),
			}), ShouldAlmostEqual, 0.2)
		})

		Convey("A single cell grid has nowhere for a passenger to go", func() {
			tiny := NewGrid(1)
			m := NewTaxiModel(tiny, DefaultRewards(), 0.2, NewSampledArrivals(tiny, rand.New(rand.NewSource(1))))
			_, dist := m.Step(State{Passenger: NoPassenger()}, North)
			So(dist, ShouldHaveLength, 1)
			So(dist[0].Probability, ShouldEqual, 1.0)
		})

		Convey("A certain arrival leaves no empty outcome", func() {
			m := NewTaxiModel(grid, DefaultRewards(), 1, NewUniformArrivals(grid))
			_, dist := m.Step(State{Passenger: NoPassenger()}, North)
			So(dist, ShouldHaveLength, grid.NumCells()-1)
			So(dist.Probability(State{Taxi: Location{X: 0, Y: 1}, Passenger: NoPassenger()}), ShouldEqual, 0.0)
			So(dist.Total(), ShouldAlmostEqual, 1.0, 1e-9)
		})
	})
}

func TestPickupDropoff(t *testing.T) {
	Convey("When picking up and dropping off", t, func() {
		grid := NewGrid(2)
		model := newFixedModel(grid, Location{X: 1, Y: 1})

		Convey("Pickup succeeds iff a passenger waits at the taxi", func() {
			for _, s := range GenerateStates(grid) {
				reward, dist := model.Step(s, Pickup)
				So(dist, ShouldHaveLength, 1)
				So(dist[0].Probability, ShouldEqual, 1.0)
				if s.Passenger.Status == Waiting && s.Passenger.Origin == s.Taxi {
					So(reward, ShouldEqual, 0.0)
					So(dist[0].State, ShouldResemble, State{Taxi: s.Taxi, Passenger: Carrying(s.Passenger.Destination)})
				} else {
					So(reward, ShouldEqual, -5.0)
					So(dist[0].State, ShouldResemble, s)
				}
			}
		})

		Convey("Dropoff succeeds iff the carried passenger's destination is the taxi", func() {
			for _, s := range GenerateStates(grid) {
				reward, dist := model.Step(s, Dropoff)
				So(dist, ShouldHaveLength, 1)
				if s.Passenger.Status == InTransit && s.Passenger.Destination == s.Taxi {
					So(reward, ShouldEqual, 10.0)
					So(dist[0].State, ShouldResemble, State{Taxi: s.Taxi, Passenger: NoPassenger()})
				} else {
					So(reward, ShouldEqual, -5.0)
					So(dist[0].State, ShouldResemble, s)
				}
			}
		})

		Convey("Pickup and dropoff never trigger an arrival", func() {
			s := State{Taxi: Location{X: 0, Y: 0}, Passenger: Carrying(Location{X: 0, Y: 0})}
			_, dist := model.Step(s, Dropoff)
			So(dist, ShouldHaveLength, 1)
			So(dist[0].State.Passenger, ShouldResemble, NoPassenger())
		})
	})
}

func TestArrivals(t *testing.T) {
	Convey("When drawing passenger destinations", t, func() {
		grid := NewGrid(4)

		Convey("Sampled destinations never equal their origin and are reproducible", func() {
			a := NewSampledArrivals(grid, rand.New(rand.NewSource(42)))
			b := NewSampledArrivals(grid, rand.New(rand.NewSource(42)))
			for _, origin := range grid.Cells() {
				da, ok := a.Destination(origin)
				So(ok, ShouldBeTrue)
				So(da, ShouldNotResemble, origin)
				So(grid.WithinGrid(da), ShouldBeTrue)
				db, _ := b.Destination(origin)
				So(db, ShouldResemble, da)
				So(a.Destinations(origin), ShouldResemble, []WeightedLocation{{Location: da, Weight: 1}})
			}
		})

		Convey("Uniform destinations cover every other location equally", func() {
			ua := NewUniformArrivals(grid)
			origin := Location{X: 3, Y: 0}
			dests := ua.Destinations(origin)
			So(dests, ShouldHaveLength, grid.NumCells()-1)
			total := 0.0
			for _, d := range dests {
				So(d.Location, ShouldNotResemble, origin)
				So(d.Weight, ShouldAlmostEqual, 1.0/15.0)
				total += d.Weight
			}
			So(total, ShouldAlmostEqual, 1.0, 1e-9)
		})
	})
}

func TestDistributionSample(t *testing.T) {
	Convey("When sampling a distribution", t, func() {
		a := State{Taxi: Location{X: 0, Y: 0}}
		b := State{Taxi: Location{X: 1, Y: 0}}
		dist := Distribution{{State: a, Probability: 0.25}, {State: b, Probability: 0.75}}
		rng := rand.New(rand.NewSource(3))
		counts := map[State]int{}
		for i := 0; i < 4000; i++ {
			counts[dist.Sample(rng)]++
		}
		So(counts[a], ShouldBeBetween, 800, 1200)
		So(counts[b], ShouldBeBetween, 2800, 3200)
	})
}
