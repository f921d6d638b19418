package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	. "taxi/grid_world"
	"taxi/export"
	"taxi/reinforcement"
	"taxi/server"
	"taxi/server/cell_views"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidAnimation is returned for rollout settings that cannot animate a policy.
var ErrInvalidAnimation = errors.New("invalid animation settings")

var (
	addr         string
	rolloutSteps int
	stepDelay    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Solve while serving a live view of the sweeps, then animate the policy",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&rolloutSteps, "rollout-steps", 100, "steps per animated rollout")
	serveCmd.Flags().DurationVar(&stepDelay, "step-delay", 300*time.Millisecond, "delay between animated steps")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := checkAnimation(rolloutSteps, stepDelay); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := cfg.NewModel(nil)
	if err != nil {
		return err
	}
	grid := cfg.Grid()

	// Progress is latest-wins: the solver never waits on the views.
	progress := make(chan reinforcement.Progress, 1)
	steps := make(chan reinforcement.Step)
	toFrame := cell_views.FrameConverter(model, grid, cfg.Discount)
	srv, err := server.NewServer(ctx, addr, grid, progress, toFrame, steps)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Serve(groupCtx)
	})
	group.Go(func() error {
		return solveAndAnimate(groupCtx, cfg, srv, progress, steps)
	})
	return group.Wait()
}

func solveAndAnimate(
	ctx context.Context,
	cfg reinforcement.SolverConfig,
	srv *server.Server,
	progress chan reinforcement.Progress,
	steps chan<- reinforcement.Step,
) error {
	publish := func(report reinforcement.Progress) {
		select {
		case <-progress:
		default:
		}
		select {
		case progress <- report:
		default:
		}
	}

	sol, err := solve(cfg, publish)
	if err != nil {
		return err
	}
	table, err := export.NewTable(sol.grid, sol.states, sol.result, sol.policy)
	if err != nil {
		return err
	}
	srv.SetSolution(&server.Solution{
		Grid:      sol.grid,
		Table:     table,
		Values:    sol.result.Values,
		Policy:    sol.policy,
		History:   sol.result.History,
		Threshold: cfg.Threshold,
	})

	return animate(ctx, sol, steps)
}

func checkAnimation(steps int, delay time.Duration) error {
	if steps < 1 {
		return fmt.Errorf("%w: rollout-steps must be at least 1, got %d", ErrInvalidAnimation, steps)
	}
	if delay <= 0 {
		return fmt.Errorf("%w: step-delay must be positive, got %v", ErrInvalidAnimation, delay)
	}
	return nil
}

// animate rolls out the solved policy from random empty-taxi starts until @ctx is done.
func animate(ctx context.Context, sol *solution, steps chan<- reinforcement.Step) error {
	if err := checkAnimation(rolloutSteps, stepDelay); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(sol.cfg.Seed))
	cells := sol.grid.Cells()
	ticker := channerics.NewTicker(ctx.Done(), stepDelay)

	for episodes := 1; ; episodes++ {
		if ctx.Err() != nil {
			return nil
		}
		start := State{Taxi: cells[rng.Intn(len(cells))], Passenger: NoPassenger()}
		episode := reinforcement.Rollout(sol.model, sol.policy, start, rolloutSteps, rng, North)
		slog.Debug("rollout", "episode", episodes, "return", episode.Return())

		for _, step := range episode {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker:
			}
			select {
			case <-ctx.Done():
				return nil
			case steps <- step:
			}
		}
	}
}
