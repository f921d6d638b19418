package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteConvergenceChart renders the max delta of every sweep as an HTML line chart,
// with the convergence threshold drawn as a flat second series.
func WriteConvergenceChart(w io.Writer, history []float64, threshold float64) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "value iteration convergence",
			Subtitle: fmt.Sprintf("%d sweeps, threshold %g", len(history), threshold),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "max delta",
			Type: "log",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "sweep",
		}),
	)

	sweeps := make([]string, 0, len(history))
	deltas := make([]opts.LineData, 0, len(history))
	bound := make([]opts.LineData, 0, len(history))
	for i, delta := range history {
		sweeps = append(sweeps, fmt.Sprintf("%d", i+1))
		deltas = append(deltas, opts.LineData{Value: delta})
		bound = append(bound, opts.LineData{Value: threshold})
	}

	line.SetXAxis(sweeps).
		AddSeries("max delta", deltas).
		AddSeries("threshold", bound)

	page := components.NewPage()
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
