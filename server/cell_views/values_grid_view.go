package cell_views

import (
	"fmt"
	"html/template"

	"taxi/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValuesGrid shows the empty-taxi value of every cell, shaded by value, with the greedy
// action drawn over it, plus a line of solver status.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValuesGrid(
	done <-chan struct{},
	frames <-chan Frame,
) *ValuesGrid {
	vg := &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, frames, vg.onUpdate)
	return vg
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

func (vg *ValuesGrid) statusId() string {
	return vg.id + "-status"
}

func cellId(cell Cell, part string) string {
	return fmt.Sprintf("cell-%d-%d-%s", cell.X, cell.Y, part)
}

// Returns the set of view updates needed for the view to reflect the frame.
func (vg *ValuesGrid) onUpdate(frame Frame) (ops []fastview.EleUpdate) {
	for _, row := range Convert(frame) {
		for _, cell := range row {
			ops = append(ops,
				fastview.SetAttrs(cellId(cell, "rect"), "fill", cell.Fill),
				fastview.SetText(cellId(cell, "value"), cell.ValueText),
				fastview.SetText(cellId(cell, "arrow"), cell.Arrow),
			)
		}
	}
	ops = append(ops, fastview.SetText(vg.statusId(), statusText(frame)))
	return
}

// Parse defines the values grid svg; it is executed with a Page.
func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.id
	_, err = t.Funcs(template.FuncMap{"cellId": cellId}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<p id="` + vg.statusId() + `">{{ .Status }}</p>
			<svg id="` + vg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add .Width 1 }}px"
				height="{{ add .Height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ $dim := .CellDim }}
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{ cellId $cell "rect" }}"
							x="{{ $cell.PX }}" y="{{ $cell.PY }}"
							width="{{ $dim }}" height="{{ $dim }}"
							fill="{{ $cell.Fill }}" fill-opacity="0.4"
							stroke="black" stroke-width="1"/>
						<text id="{{ cellId $cell "value" }}"
							x="{{ add $cell.PX (div $dim 2) }}" y="{{ add $cell.PY (div $dim 3) }}"
							dominant-baseline="central" text-anchor="middle"
							>{{ $cell.ValueText }}</text>
						<text id="{{ cellId $cell "arrow" }}"
							x="{{ add $cell.PX (div $dim 2) }}" y="{{ add $cell.PY (mult (div $dim 3) 2) }}"
							font-size="24" dominant-baseline="central" text-anchor="middle"
							>{{ $cell.Arrow }}</text>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
