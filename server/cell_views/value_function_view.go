package cell_views

import (
	"fmt"
	"html/template"
	"math"

	. "taxi/grid_world"
	"taxi/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValueFunction provides a view of the empty-taxi value function as a 2d isometric
// projection of the 3d surface (x,y,value).
type ValueFunction struct {
	id      string
	size    int
	updates <-chan []fastview.EleUpdate
}

const (
	// The height in pixels of the span between the lowest and the highest value.
	surfaceHeight = CellDim * 2
	surfaceMargin = CellDim / 2
	ang           = math.Pi / 8
)

var sinAng, cosAng = math.Sin(ang), math.Cos(ang)

// Polygon is the surface patch spanned by four adjacent cells.
type Polygon struct {
	Id     string
	Points string
	Fill   string
}

func NewValueFunction(
	done <-chan struct{},
	grid Grid,
	frames <-chan Frame,
) *ValueFunction {
	vf := &ValueFunction{id: "valuefunction", size: grid.Size}
	vf.updates = channerics.Convert(done, frames, vf.onUpdate)
	return vf
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

func (vf *ValueFunction) width() int {
	return int(2*float64(vf.size)*cosAng*CellDim) + 2*surfaceMargin
}

func (vf *ValueFunction) height() int {
	return int(2*float64(vf.size)*sinAng*CellDim) + surfaceHeight + 2*surfaceMargin
}

// project applies an isometric projection; z is in [0,1].
func (vf *ValueFunction) project(x, y int, z float64) (int, int) {
	sx := float64(vf.width())/2 + float64(x-y)*cosAng*CellDim
	sy := float64(surfaceMargin+surfaceHeight) + float64(x+y)*sinAng*CellDim - z*surfaceHeight
	return int(sx), int(sy)
}

// polygons returns the surface patches in painting order, back to front, so that nearer
// patches obscure farther ones.
func (vf *ValueFunction) polygons(cells [][]Cell) (polys []Polygon) {
	size := len(cells)
	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	for _, row := range cells {
		for _, cell := range row {
			minVal = math.Min(minVal, cell.Value)
			maxVal = math.Max(maxVal, cell.Value)
		}
	}
	z := func(cell Cell) float64 {
		if maxVal-minVal < 1e-12 {
			return 0.5
		}
		return (cell.Value - minVal) / (maxVal - minVal)
	}
	point := func(cell Cell) string {
		sx, sy := vf.project(cell.X, cell.Y, z(cell))
		return fmt.Sprintf("%d,%d", sx, sy)
	}

	for depth := 0; depth <= 2*(size-2); depth++ {
		for x := 0; x < size-1; x++ {
			y := depth - x
			if y < 0 || y >= size-1 {
				continue
			}
			a, b, c, d := cells[x][y], cells[x][y+1], cells[x+1][y+1], cells[x+1][y]
			polys = append(polys, Polygon{
				Id:     fmt.Sprintf("%s-%d-%d", vf.id, x, y),
				Points: point(a) + " " + point(b) + " " + point(c) + " " + point(d),
				Fill:   a.Fill,
			})
		}
	}
	return
}

// Returns the set of view updates needed for the view to reflect the frame.
func (vf *ValueFunction) onUpdate(frame Frame) (ops []fastview.EleUpdate) {
	for _, poly := range vf.polygons(Convert(frame)) {
		ops = append(ops, fastview.SetAttrs(poly.Id, "points", poly.Points, "fill", poly.Fill))
	}
	return
}

// Parse returns an svg of polygons plotting the value surface as a 2D projection.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	_, err = t.Funcs(template.FuncMap{
		"surface": vf.polygons,
	}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<svg id="` + vf.id + `" xmlns='http://www.w3.org/2000/svg'
				width="` + fmt.Sprint(vf.width()) + `px"
				height="` + fmt.Sprint(vf.height()) + `px"
				style="stroke: black; stroke-opacity: 0.8; stroke-width: 1;">
				{{ range $poly := surface .Cells }}
				<polygon id="{{ $poly.Id }}" points="{{ $poly.Points }}"
					fill="{{ $poly.Fill }}" fill-opacity="0.6"/>
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
