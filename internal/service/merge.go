package service

import (
	"backtest-api/internal/engine"
	"backtest-api/internal/model"
	"backtest-api/pkg/utils"
)

// MergeDualRun reconciles a long-only and a short-only run that shared one
// starting capital base into a single artifact, indistinguishable in shape
// from a single-run artifact.
//
// The reconciliation rules are deliberate:
//   - final value adds the two runs' P/L deltas onto the shared base, it is
//     not the sum of the two final values;
//   - trades are concatenated long-then-short without re-sorting;
//   - the equity curve combines values index by index up to the shorter
//     sequence and inherits the long run's timestamps, even where the two
//     runs' timestamps diverge;
//   - max drawdown is the larger of the two reported values, not recomputed
//     from the merged curve;
//   - the returns report is left empty rather than reconstructed.
func MergeDualRun(longArt, shortArt *RunArtifact, cfg model.BacktestConfig) *RunArtifact {
	cash := cfg.InitialCash
	finalValue := cash + (longArt.FinalValue - cash) + (shortArt.FinalValue - cash)

	trades := make([]engine.Trade, 0, len(longArt.Trades)+len(shortArt.Trades))
	trades = append(trades, longArt.Trades...)
	trades = append(trades, shortArt.Trades...)

	n := len(longArt.Equity)
	if len(shortArt.Equity) < n {
		n = len(shortArt.Equity)
	}
	equity := make([]engine.EquityPoint, 0, n)
	for i := 0; i < n; i++ {
		equity = append(equity, engine.EquityPoint{
			Timestamp: longArt.Equity[i].Timestamp,
			Value:     longArt.Equity[i].Value + shortArt.Equity[i].Value - cash,
		})
	}

	return &RunArtifact{
		FinalValue: finalValue,
		Analyzers: engine.Analyzers{
			Trades: engine.TradeSummary{
				Total: longArt.Analyzers.Trades.Total + shortArt.Analyzers.Trades.Total,
				Won:   longArt.Analyzers.Trades.Won + shortArt.Analyzers.Trades.Won,
			},
			Drawdown: mergeDrawdown(longArt.Analyzers.Drawdown, shortArt.Analyzers.Drawdown),
			Sharpe:   mergeSharpe(longArt.Analyzers.Sharpe, shortArt.Analyzers.Sharpe),
			Returns:  engine.ReturnsReport{},
		},
		Trades: trades,
		Equity: equity,
		Config: cfg,
		Params: cfg.StrategyParams,
	}
}

func mergeDrawdown(long, short engine.DrawdownReport) engine.DrawdownReport {
	longDD := 0.0
	if long.MaxPct != nil {
		longDD = *long.MaxPct
	}
	shortDD := 0.0
	if short.MaxPct != nil {
		shortDD = *short.MaxPct
	}
	if shortDD > longDD {
		longDD = shortDD
	}
	return engine.DrawdownReport{MaxPct: utils.ToPointer(longDD)}
}

// mergeSharpe averages whichever of the two ratios are finite numbers; nil
// when neither is.
func mergeSharpe(long, short engine.SharpeReport) engine.SharpeReport {
	var values []float64
	if v := safeFloat(long.Ratio); v != nil {
		values = append(values, *v)
	}
	if v := safeFloat(short.Ratio); v != nil {
		values = append(values, *v)
	}
	if len(values) == 0 {
		return engine.SharpeReport{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return engine.SharpeReport{Ratio: utils.ToPointer(sum / float64(len(values)))}
}
