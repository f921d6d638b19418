package cell_views

import (
	"fmt"
	"html/template"
	"strconv"

	. "taxi/grid_world"
	"taxi/reinforcement"
	"taxi/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// TaxiView animates policy rollouts: the taxi, a waiting passenger's pickup spot, and the
// destination of the current fare, plus a running log line.
type TaxiView struct {
	id      string
	size    int
	updates <-chan []fastview.EleUpdate
	// Rollout bookkeeping; only touched by the single Convert routine.
	steps int
	total float64
}

func NewTaxiView(
	done <-chan struct{},
	grid Grid,
	steps <-chan reinforcement.Step,
) *TaxiView {
	tv := &TaxiView{id: "taxiview", size: grid.Size}
	tv.updates = channerics.Convert(done, steps, tv.onStep)
	return tv
}

func (tv *TaxiView) Updates() <-chan []fastview.EleUpdate {
	return tv.updates
}

func (tv *TaxiView) eleId(part string) string {
	return tv.id + "-" + part
}

// marker positions a square marker over @loc, or hides it.
func (tv *TaxiView) marker(part string, loc Location, visible bool) fastview.EleUpdate {
	px, py := pixel(loc, tv.size)
	visibility := "hidden"
	if visible {
		visibility = "visible"
	}
	return fastview.SetAttrs(tv.eleId(part),
		"x", strconv.Itoa(px+CellDim/8),
		"y", strconv.Itoa(py+CellDim/8),
		"visibility", visibility)
}

// Returns the view updates for the state the taxi lands in after @step.
func (tv *TaxiView) onStep(step reinforcement.Step) []fastview.EleUpdate {
	tv.steps++
	tv.total += step.Reward
	s := step.Successor
	cx, cy := center(s.Taxi, tv.size)

	return []fastview.EleUpdate{
		fastview.SetAttrs(tv.eleId("taxi"),
			"cx", strconv.Itoa(cx),
			"cy", strconv.Itoa(cy),
			"fill", taxiFill(s.Passenger)),
		tv.marker("origin", s.Passenger.Origin, s.Passenger.Status == Waiting),
		tv.marker("destination", s.Passenger.Destination, s.Passenger.Status != Empty),
		fastview.SetText(tv.eleId("log"), fmt.Sprintf(
			"step %d: %v, reward %.0f, return %.0f, passenger %v",
			tv.steps, step.Action, step.Reward, tv.total, s.Passenger)),
	}
}

func taxiFill(p Passenger) string {
	if p.Status == InTransit {
		return "orange"
	}
	return "gold"
}

// Parse defines the rollout svg; it is executed with a Page.
func (tv *TaxiView) Parse(t *template.Template) (name string, err error) {
	name = tv.id
	quarter := strconv.Itoa(CellDim * 3 / 4)
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<p id="` + tv.eleId("log") + `">waiting for the policy</p>
			<svg id="` + tv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add .Width 1 }}px"
				height="{{ add .Height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ $dim := .CellDim }}
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<rect x="{{ $cell.PX }}" y="{{ $cell.PY }}" width="{{ $dim }}" height="{{ $dim }}"
						fill="white" stroke="black" stroke-width="1"/>
					{{ end }}
				{{ end }}
				<rect id="` + tv.eleId("origin") + `" x="0" y="0" width="` + quarter + `" height="` + quarter + `"
					fill="lightgreen" visibility="hidden"/>
				<rect id="` + tv.eleId("destination") + `" x="0" y="0" width="` + quarter + `" height="` + quarter + `"
					fill="none" stroke="magenta" stroke-width="4" visibility="hidden"/>
				<circle id="` + tv.eleId("taxi") + `" cx="{{ div $dim 2 }}" cy="{{ sub .Height (div $dim 2) }}"
					r="{{ div $dim 4 }}" fill="gold" stroke="black"/>
			</svg>
		</div>
		{{ end }}`)
	return
}
