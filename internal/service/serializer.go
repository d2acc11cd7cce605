package service

import (
	"math"
	"time"

	"backtest-api/internal/dto"
	"backtest-api/internal/engine"
	"backtest-api/pkg/utils"
)

// BuildBacktestResult normalizes a run artifact into the stable caller-facing
// result. Pure and deterministic; malformed values degrade to null or are
// dropped instead of failing the job.
func BuildBacktestResult(jobID string, art *RunArtifact) dto.BacktestResult {
	totalTrades := art.Analyzers.Trades.Total
	wonTrades := art.Analyzers.Trades.Won

	initialCash := art.Config.InitialCash
	finalValue := art.FinalValue
	netProfit := finalValue - initialCash

	totalReturnPct := 0.0
	if initialCash != 0 {
		totalReturnPct = netProfit / initialCash * 100.0
	}
	winRatePct := 0.0
	if totalTrades != 0 {
		winRatePct = float64(wonTrades) / float64(totalTrades) * 100.0
	}

	return dto.BacktestResult{
		BacktestID:     jobID,
		Symbol:         art.Config.Symbol,
		Timeframe:      art.Config.Timeframe,
		StartDate:      optionalString(art.Config.StartDate),
		EndDate:        optionalString(art.Config.EndDate),
		InitialCash:    initialCash,
		FinalValue:     finalValue,
		NetProfit:      netProfit,
		TotalReturnPct: totalReturnPct,
		MaxDrawdownPct: normalizeDrawdown(art.Analyzers.Drawdown.MaxPct),
		SharpeRatio:    safeFloat(art.Analyzers.Sharpe.Ratio),
		TotalTrades:    totalTrades,
		WinRatePct:     winRatePct,
		TradeList:      extractTradeList(art.Trades),
		EquityCurve:    extractEquityCurve(art.Equity),
		StrategyParams: art.Params,
	}
}

// normalizeDrawdown disambiguates the source convention: magnitudes at or
// below 1.0 are treated as fractions and scaled to percent. The result is
// clamped to 99.9.
func normalizeDrawdown(raw *float64) float64 {
	if raw == nil {
		return 0.0
	}
	value := math.Abs(*raw)
	if value <= 1.0 {
		value *= 100.0
	}
	if value > 99.9 {
		value = 99.9
	}
	return value
}

// safeFloat filters out non-finite values; they serialize as null instead of
// breaking the JSON payload.
func safeFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	if !isFinite(*value) {
		return nil
	}
	v := *value
	return &v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func extractTradeList(trades []engine.Trade) []dto.TradeModel {
	out := make([]dto.TradeModel, 0, len(trades))
	for _, t := range trades {
		out = append(out, dto.TradeModel{
			EntryTime:  isoTime(t.EntryTime),
			ExitTime:   isoTime(t.ExitTime),
			Direction:  optionalString(t.Direction),
			EntryPrice: safeFloat(t.EntryPrice),
			ExitPrice:  safeFloat(t.ExitPrice),
			Size:       safeFloat(t.Size),
			Pnl:        safeFloat(t.Pnl),
			ExitReason: optionalString(t.ExitReason),
		})
	}
	return out
}

// extractEquityCurve drops points whose timestamp is not a well-formed
// date-time rather than emitting a partial record.
func extractEquityCurve(points []engine.EquityPoint) []dto.EquityPoint {
	out := make([]dto.EquityPoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp.IsZero() {
			continue
		}
		out = append(out, dto.EquityPoint{
			Timestamp: utils.FormatISO(p.Timestamp),
			Value:     p.Value,
		})
	}
	return out
}

// isoTime formats a trade timestamp, serializing missing or malformed values
// as null.
func isoTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	return utils.ToPointer(utils.FormatISO(*t))
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
