package main

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"

	. "taxi/grid_world"
	"taxi/export"
	"taxi/reinforcement"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
)

var (
	jsonPath  string
	yamlPath  string
	chartPath string
	gridPath  string
	demoSteps int
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run value iteration and print the empty-taxi values and policy",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&jsonPath, "json", "", "write the value and policy table as json to this path")
	solveCmd.Flags().StringVar(&yamlPath, "yaml", "", "write the value and policy table as yaml to this path")
	solveCmd.Flags().StringVar(&chartPath, "chart", "", "write an html convergence chart to this path")
	solveCmd.Flags().StringVar(&gridPath, "grid-output", "", "write the empty-taxi value and policy grids as text to this path")
	solveCmd.Flags().IntVar(&demoSteps, "demo", 0, "print a rollout of the policy with this many steps")
}

// solution is a finished run and everything derived from it.
type solution struct {
	cfg    reinforcement.SolverConfig
	grid   Grid
	states []State
	model  *reinforcement.TaxiModel
	result *reinforcement.Result
	policy *reinforcement.Policy
}

// solve enumerates the taxi world for @cfg, solves it, and extracts the greedy policy.
func solve(cfg reinforcement.SolverConfig, progressFn reinforcement.ProgressFunc) (*solution, error) {
	grid := cfg.Grid()
	states := GenerateStates(grid)
	model, err := cfg.NewModel(nil)
	if err != nil {
		return nil, err
	}

	result, err := reinforcement.Solve(states, Actions(), model, cfg, progressFn)
	if err != nil {
		return nil, err
	}
	policy, err := reinforcement.ExtractPolicy(states, Actions(), model, result.Values, cfg.Discount)
	if err != nil {
		return nil, err
	}

	return &solution{
		cfg:    cfg,
		grid:   grid,
		states: states,
		model:  model,
		result: result,
		policy: policy,
	}, nil
}

func runSolve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sol, err := solve(cfg, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report(out, sol, !noColor)
	if demoSteps > 0 {
		showRollout(out, sol, demoSteps, !noColor)
	}
	return writeExports(sol)
}

// report prints the run summary, the empty-taxi slice of the values and the policy,
// and how often the policy picks each action.
func report(w io.Writer, sol *solution, colors bool) {
	au := aurora.NewAurora(colors)
	status := au.Green(sol.result.Status.String())
	if !sol.result.Converged {
		status = au.Yellow(sol.result.Status.String())
	}
	fmt.Fprintf(w, "%s after %d sweeps, %d states, run %s\n",
		status, sol.result.Iterations, len(sol.states), sol.result.RunID)

	console := NewConsole(w, colors)
	fmt.Fprintln(w, au.Bold("values, empty taxi"))
	console.ShowValues(sol.grid, sol.result.Values.Value)
	fmt.Fprintln(w, au.Bold("policy, empty taxi"))
	console.ShowPolicy(sol.grid, sol.policy.Lookup)

	stats := sol.policy.Stats()
	fmt.Fprintln(w, au.Bold(fmt.Sprintf("policy statistics, %d states", stats.States)))
	for _, a := range Actions() {
		fmt.Fprintf(w, "  %-8s %6d %5.1f%%\n", a, stats.Counts[a], stats.Percent(a))
	}
}

// showRollout prints every state of a rollout of the policy from the bottom left corner.
func showRollout(w io.Writer, sol *solution, steps int, colors bool) {
	rng := rand.New(rand.NewSource(sol.cfg.Seed))
	start := State{Taxi: Location{X: 0, Y: 0}, Passenger: NoPassenger()}
	episode := reinforcement.Rollout(sol.model, sol.policy, start, steps, rng, North)

	console := NewConsole(w, colors)
	console.ShowState(sol.grid, start)
	for i, step := range episode {
		fmt.Fprintf(w, "\n%d: %v, reward %.0f\n", i+1, step.Action, step.Reward)
		console.ShowState(sol.grid, step.Successor)
	}
	fmt.Fprintf(w, "\nreturn %.0f\n", episode.Return())
}

func writeExports(sol *solution) error {
	if jsonPath == "" && yamlPath == "" && chartPath == "" && gridPath == "" {
		return nil
	}
	if gridPath != "" {
		err := writeFile(gridPath, func(w io.Writer) error {
			export.WriteGrid(w, sol.grid, sol.result.Values, sol.policy)
			return nil
		})
		if err != nil {
			return err
		}
	}

	table, err := export.NewTable(sol.grid, sol.states, sol.result, sol.policy)
	if err != nil {
		return err
	}
	if jsonPath != "" {
		if err := writeFile(jsonPath, func(w io.Writer) error { return export.WriteJSON(w, table) }); err != nil {
			return err
		}
	}
	if yamlPath != "" {
		if err := writeFile(yamlPath, func(w io.Writer) error { return export.WriteYAML(w, table) }); err != nil {
			return err
		}
	}
	if chartPath != "" {
		err := writeFile(chartPath, func(w io.Writer) error {
			return export.WriteConvergenceChart(w, sol.result.History, sol.cfg.Threshold)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if err = write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("wrote", "path", path)
	return nil
}
