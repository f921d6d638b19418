/*
Taxi solves a small taxi world by value iteration. A taxi drives an NxN grid, a passenger
appears at some cell wanting to go to another, and the taxi must pick them up and drop them
off. The state space is enumerated exhaustively, the optimal values are computed by synchronous
sweeps of the Bellman optimality backup, and the greedy policy is read off the converged values.

	taxi solve --grid 5 --json values.json
	taxi serve --addr :8080

The serve command shows the sweeps live in the browser and then animates rollouts of the
solved policy.
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"taxi/reinforcement"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
	noColor    bool

	gridSize      int
	gamma         float64
	threshold     float64
	maxIterations int
	workers       int
	seed          int64
	arrivalMode   string
	arrivalProb   float64
)

var rootCmd = &cobra.Command{
	Use:   "taxi",
	Short: "Solve the taxi world by value iteration",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debug)
	},
	SilenceUsage: true,
}

func init() {
	addSolverFlags(rootCmd)
	rootCmd.AddCommand(solveCmd, serveCmd)
}

// addSolverFlags binds the persistent flags shared by every subcommand.
func addSolverFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "kind/def yaml config file; flags override its values")
	flags.BoolVar(&debug, "debug", false, "debug logging")
	flags.BoolVar(&noColor, "no-color", false, "disable colored console output")

	defaults := reinforcement.DefaultSolverConfig()
	flags.IntVarP(&gridSize, "grid", "n", defaults.GridSize, "grid side length")
	flags.Float64Var(&gamma, "gamma", defaults.Discount, "discount factor, in (0,1)")
	flags.Float64Var(&threshold, "threshold", defaults.Threshold, "convergence threshold on the max value change of a sweep")
	flags.IntVar(&maxIterations, "max-iterations", defaults.MaxIterations, "sweep cap")
	flags.IntVar(&workers, "workers", defaults.Workers, "sweep workers; 0 uses every cpu")
	flags.Int64Var(&seed, "seed", defaults.Seed, "seed for the passenger destination draws")
	flags.StringVar(&arrivalMode, "arrival", defaults.Arrival.Mode, "passenger arrival mode: sampled or uniform")
	flags.Float64Var(&arrivalProb, "arrival-prob", defaults.Arrival.Probability, "per-step passenger arrival probability")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig builds the solver configuration: defaults, then the config file if any, then
// whichever flags were set explicitly.
func loadConfig(cmd *cobra.Command) (reinforcement.SolverConfig, error) {
	cfg := reinforcement.DefaultSolverConfig()
	if configPath != "" {
		fileConfig, err := reinforcement.FromYaml(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = fileConfig.SolverConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("grid") {
		cfg.GridSize = gridSize
	}
	if flags.Changed("gamma") {
		cfg.Discount = gamma
	}
	if flags.Changed("threshold") {
		cfg.Threshold = threshold
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("arrival") {
		cfg.Arrival.Mode = arrivalMode
	}
	if flags.Changed("arrival-prob") {
		cfg.Arrival.Probability = arrivalProb
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
