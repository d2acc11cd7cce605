package service

import (
	"context"
	"fmt"

	"backtest-api/internal/engine"
	"backtest-api/internal/model"

	"golang.org/x/sync/errgroup"
)

// RunArtifact is the raw output bundle of one simulation invocation, shaped
// identically for single runs and merged dual runs.
type RunArtifact struct {
	FinalValue float64
	Analyzers  engine.Analyzers
	Trades     []engine.Trade
	Equity     []engine.EquityPoint
	Config     model.BacktestConfig
	Params     map[string]any
}

// Runner drives the external simulation engine. It performs no retries:
// engine failures propagate unmodified and become the job's terminal state.
type Runner struct {
	engine engine.Engine
}

func NewRunner(eng engine.Engine) *Runner {
	return &Runner{engine: eng}
}

// RunOnce invokes the engine exactly once with the full resolved parameter
// set.
func (r *Runner) RunOnce(ctx context.Context, cfg model.BacktestConfig, params map[string]any) (*RunArtifact, error) {
	result, err := r.engine.Run(ctx, runInput(cfg, params))
	if err != nil {
		return nil, err
	}
	return &RunArtifact{
		FinalValue: result.FinalValue,
		Analyzers:  result.Analyzers,
		Trades:     result.Trades,
		Equity:     result.Equity,
		Config:     cfg,
		Params:     params,
	}, nil
}

// RunDual produces two independent simulations sharing the same market data
// and starting capital: one long-only, one short-only. Each run owns its own
// account bookkeeping, so the two may execute in parallel; both must finish
// before merging.
func (r *Runner) RunDual(ctx context.Context, cfg model.BacktestConfig, params map[string]any) (*RunArtifact, *RunArtifact, error) {
	longParams := engine.CloneParams(params)
	longParams["long_enabled"] = true
	longParams["short_enabled"] = false

	shortParams := engine.CloneParams(params)
	shortParams["long_enabled"] = false
	shortParams["short_enabled"] = true

	var longArt, shortArt *RunArtifact
	g, gctx := errgroup.WithContext(ctx)
	// A panic inside a group goroutine would crash the process; surface it as
	// the run's error instead so the job reaches its terminal state.
	runSide := func(out **RunArtifact, sideParams map[string]any) func() error {
		return func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic during simulation: %v", rec)
				}
			}()
			art, runErr := r.RunOnce(gctx, cfg, sideParams)
			*out = art
			return runErr
		}
	}
	g.Go(runSide(&longArt, longParams))
	g.Go(runSide(&shortArt, shortParams))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return longArt, shortArt, nil
}

func runInput(cfg model.BacktestConfig, params map[string]any) engine.RunInput {
	return engine.RunInput{
		Strategy:    cfg.Strategy,
		DataFile:    cfg.DataFile,
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		Symbol:      cfg.Symbol,
		Timeframe:   cfg.Timeframe,
		InitialCash: cfg.InitialCash,
		MaxBars:     cfg.LimitBars,
		Params:      params,
	}
}
