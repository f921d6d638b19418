// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"fmt"
	"log/slog"
	"math"

	. "taxi/grid_world"
	"taxi/reinforcement"
)

// CellDim is the height and width of a grid cell in pixels.
const CellDim = 80

// Frame is one solver progress report projected onto the empty-taxi slice of the state space,
// which is the slice worth watching: it is where the taxi cruises between fares.
type Frame struct {
	Iteration int
	MaxDelta  float64
	Status    string
	Grid      Grid
	Value     ValueFunc
	Action    ActionFunc
}

// NewFrame projects a progress report, deriving the greedy actions of the empty-taxi states
// against the reported values.
func NewFrame(
	progress reinforcement.Progress,
	model reinforcement.TransitionModel,
	grid Grid,
	discount float64,
) (Frame, error) {
	cells := grid.Cells()
	empties := make([]State, 0, len(cells))
	for _, loc := range cells {
		empties = append(empties, State{Taxi: loc, Passenger: NoPassenger()})
	}
	policy, err := reinforcement.ExtractPolicy(empties, Actions(), model, progress.Values, discount)
	if err != nil {
		return Frame{}, fmt.Errorf("frame policy: %w", err)
	}

	return Frame{
		Iteration: progress.Iteration,
		MaxDelta:  progress.MaxDelta,
		Status:    progress.Status.String(),
		Grid:      grid,
		Value:     progress.Values.Value,
		Action:    policy.Lookup,
	}, nil
}

// FrameConverter returns NewFrame bound to a model. A report whose policy cannot be derived
// still yields a frame, with its values and no actions.
func FrameConverter(
	model reinforcement.TransitionModel,
	grid Grid,
	discount float64,
) func(reinforcement.Progress) Frame {
	return func(progress reinforcement.Progress) Frame {
		frame, err := NewFrame(progress, model, grid, discount)
		if err != nil {
			slog.Warn("frame without policy", "iteration", progress.Iteration, "error", err)
			frame = BlankFrame(grid)
			frame.Iteration = progress.Iteration
			frame.MaxDelta = progress.MaxDelta
			frame.Status = progress.Status.String()
			if progress.Values != nil {
				frame.Value = progress.Values.Value
			}
		}
		return frame
	}
}

// BlankFrame is the frame shown before the first progress report.
func BlankFrame(grid Grid) Frame {
	return Frame{
		Status: reinforcement.Running.String(),
		Grid:   grid,
		Value:  func(State) (float64, bool) { return 0, true },
		Action: func(State) (Action, bool) { return 0, false },
	}
}

// Cell is a grid location with fields immediately usable as view parameters. X and Y are grid
// coordinates; PX and PY are the svg pixel coordinates of the cell's top left corner, flipped so
// that north is up.
type Cell struct {
	X, Y      int
	PX, PY    int
	Value     float64
	ValueText string
	Arrow     string
	Fill      string
}

// Page is the data the page templates are executed with.
type Page struct {
	Cells         [][]Cell
	Width, Height int
	CellDim       int
	Status        string
}

// Convert transforms a frame into Cells indexed [x][y].
func Convert(frame Frame) (cells [][]Cell) {
	size := frame.Grid.Size
	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	values := make([][]float64, size)
	for x := 0; x < size; x++ {
		values[x] = make([]float64, size)
		for y := 0; y < size; y++ {
			v, _ := frame.Value(State{Taxi: Location{X: x, Y: y}, Passenger: NoPassenger()})
			values[x][y] = v
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}

	cells = make([][]Cell, size)
	for x := 0; x < size; x++ {
		cells[x] = make([]Cell, size)
		for y := 0; y < size; y++ {
			s := State{Taxi: Location{X: x, Y: y}, Passenger: NoPassenger()}
			arrow := "?"
			if a, ok := frame.Action(s); ok {
				arrow = string(ActionRune(a))
			}
			px, py := pixel(Location{X: x, Y: y}, size)
			cells[x][y] = Cell{
				X:         x,
				Y:         y,
				PX:        px,
				PY:        py,
				Value:     values[x][y],
				ValueText: fmt.Sprintf("%.2f", values[x][y]),
				Arrow:     arrow,
				Fill:      getRGBFill(values[x][y], minVal, maxVal),
			}
		}
	}
	return
}

// NewPage returns the initial page data for a frame.
func NewPage(frame Frame) Page {
	size := frame.Grid.Size
	return Page{
		Cells:   Convert(frame),
		Width:   size * CellDim,
		Height:  size * CellDim,
		CellDim: CellDim,
		Status:  statusText(frame),
	}
}

// pixel returns the svg coordinates of the top left corner of @loc.
func pixel(loc Location, size int) (px, py int) {
	return loc.X * CellDim, (size - loc.Y - 1) * CellDim
}

// center returns the svg coordinates of the center of @loc.
func center(loc Location, size int) (cx, cy int) {
	px, py := pixel(loc, size)
	return px + CellDim/2, py + CellDim/2
}

// Returns an RGB value defined by where val lies along the number line between minVal and maxVal:
// red at the maximum, blue at the minimum.
func getRGBFill(val, minVal, maxVal float64) string {
	if maxVal-minVal < 1e-12 {
		return "rgb(50%,0%,50%)"
	}
	redPct := int(math.Round(100.0 * (val - minVal) / (maxVal - minVal)))
	return fmt.Sprintf("rgb(%d%%,0%%,%d%%)", redPct, 100-redPct)
}

func statusText(frame Frame) string {
	return fmt.Sprintf("sweep %d, max delta %.6f, %s", frame.Iteration, frame.MaxDelta, frame.Status)
}
