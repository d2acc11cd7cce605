package engine

import (
	"math"

	"backtest-api/pkg/utils"
)

// Trading periods per year used to annualize the per-bar Sharpe ratio.
const annualizationFactor = 252.0

func computeAnalyzers(trades []Trade, equity []EquityPoint, initialCash float64) Analyzers {
	return Analyzers{
		Trades:   tradeSummary(trades),
		Drawdown: drawdownReport(equity),
		Sharpe:   sharpeReport(equity),
		Returns:  returnsReport(equity, initialCash),
	}
}

func tradeSummary(trades []Trade) TradeSummary {
	summary := TradeSummary{Total: len(trades)}
	for _, t := range trades {
		if t.Pnl != nil && *t.Pnl > 0 {
			summary.Won++
		}
	}
	return summary
}

// drawdownReport returns the maximum peak-to-trough decline in percent.
func drawdownReport(equity []EquityPoint) DrawdownReport {
	if len(equity) == 0 {
		return DrawdownReport{}
	}

	peak := equity[0].Value
	var maxDD float64
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			dd := (peak - p.Value) / peak * 100.0
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return DrawdownReport{MaxPct: utils.ToPointer(maxDD)}
}

func sharpeReport(equity []EquityPoint) SharpeReport {
	returns := barReturns(equity)
	if len(returns) < 2 {
		return SharpeReport{}
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return SharpeReport{}
	}

	ratio := mean / std * math.Sqrt(annualizationFactor)
	return SharpeReport{Ratio: utils.ToPointer(ratio)}
}

func returnsReport(equity []EquityPoint, initialCash float64) ReturnsReport {
	if len(equity) == 0 || initialCash <= 0 {
		return ReturnsReport{}
	}
	final := equity[len(equity)-1].Value
	if final <= 0 {
		return ReturnsReport{}
	}

	total := math.Log(final / initialCash)
	annualized := total * annualizationFactor / float64(len(equity))
	return ReturnsReport{
		Total:      utils.ToPointer(total),
		Annualized: utils.ToPointer(annualized),
	}
}

func barReturns(equity []EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}
	return out
}
