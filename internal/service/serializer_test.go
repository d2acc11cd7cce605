package service

import (
	"math"
	"testing"
	"time"

	"backtest-api/internal/engine"
	"backtest-api/internal/model"
	"backtest-api/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDrawdown(t *testing.T) {
	tests := []struct {
		name string
		raw  *float64
		want float64
	}{
		{name: "nil means no drawdown", raw: nil, want: 0.0},
		{name: "fraction scales to percent", raw: utils.ToPointer(0.5), want: 50.0},
		{name: "negative fraction loses sign", raw: utils.ToPointer(-0.5), want: 50.0},
		{name: "percent kept as-is", raw: utils.ToPointer(42.0), want: 42.0},
		{name: "negative percent loses sign", raw: utils.ToPointer(-42.0), want: 42.0},
		{name: "exactly one scales", raw: utils.ToPointer(1.0), want: 100.0 - 0.1},
		{name: "runaway value clamps", raw: utils.ToPointer(150.0), want: 99.9},
		{name: "zero stays zero", raw: utils.ToPointer(0.0), want: 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, normalizeDrawdown(tt.raw), 1e-9)
		})
	}
}

func TestBuildBacktestResult_Totals(t *testing.T) {
	art := &RunArtifact{
		FinalValue: 110000,
		Analyzers: engine.Analyzers{
			Trades: engine.TradeSummary{Total: 4, Won: 3},
		},
		Config: model.BacktestConfig{
			Symbol:      "XAUUSD",
			Timeframe:   "5m",
			StartDate:   "2025-01-01",
			EndDate:     "2025-02-01",
			InitialCash: 100000,
		},
	}

	result := BuildBacktestResult("job-1", art)

	assert.Equal(t, "job-1", result.BacktestID)
	assert.Equal(t, 10000.0, result.NetProfit)
	assert.InDelta(t, 10.0, result.TotalReturnPct, 1e-9)
	assert.InDelta(t, 75.0, result.WinRatePct, 1e-9)
	if assert.NotNil(t, result.StartDate) {
		assert.Equal(t, "2025-01-01", *result.StartDate)
	}
}

func TestBuildBacktestResult_ZeroDivisors(t *testing.T) {
	art := &RunArtifact{
		FinalValue: 0,
		Config:     model.BacktestConfig{InitialCash: 0},
	}

	result := BuildBacktestResult("job-2", art)

	assert.Equal(t, 0.0, result.TotalReturnPct)
	assert.Equal(t, 0.0, result.WinRatePct)
	assert.Equal(t, 0, result.TotalTrades)
}

func TestBuildBacktestResult_NonFiniteSharpe(t *testing.T) {
	tests := []struct {
		name  string
		ratio *float64
		want  *float64
	}{
		{name: "finite kept", ratio: utils.ToPointer(1.3), want: utils.ToPointer(1.3)},
		{name: "nan dropped", ratio: utils.ToPointer(math.NaN()), want: nil},
		{name: "inf dropped", ratio: utils.ToPointer(math.Inf(-1)), want: nil},
		{name: "nil stays nil", ratio: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := &RunArtifact{
				Analyzers: engine.Analyzers{Sharpe: engine.SharpeReport{Ratio: tt.ratio}},
				Config:    model.BacktestConfig{InitialCash: 100000},
			}

			result := BuildBacktestResult("job-3", art)
			if tt.want == nil {
				assert.Nil(t, result.SharpeRatio)
			} else if assert.NotNil(t, result.SharpeRatio) {
				assert.Equal(t, *tt.want, *result.SharpeRatio)
			}
		})
	}
}

func TestBuildBacktestResult_TradeList(t *testing.T) {
	entry := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	exit := time.Date(2025, 1, 2, 14, 0, 0, 0, time.UTC)
	art := &RunArtifact{
		Config: model.BacktestConfig{InitialCash: 100000},
		Trades: []engine.Trade{
			{
				EntryTime:  &entry,
				ExitTime:   &exit,
				Direction:  engine.DirectionLong,
				EntryPrice: utils.ToPointer(2050.0),
				ExitPrice:  utils.ToPointer(2060.0),
				Size:       utils.ToPointer(10.0),
				Pnl:        utils.ToPointer(100.0),
				ExitReason: "stop",
			},
			{
				// Missing timestamps and a NaN price degrade field by field.
				Direction:  engine.DirectionShort,
				EntryPrice: utils.ToPointer(math.NaN()),
			},
		},
	}

	result := BuildBacktestResult("job-4", art)

	if assert.Len(t, result.TradeList, 2) {
		first := result.TradeList[0]
		if assert.NotNil(t, first.EntryTime) {
			assert.Equal(t, "2025-01-02T10:00:00Z", *first.EntryTime)
		}
		if assert.NotNil(t, first.Direction) {
			assert.Equal(t, "long", *first.Direction)
		}
		if assert.NotNil(t, first.Pnl) {
			assert.Equal(t, 100.0, *first.Pnl)
		}

		second := result.TradeList[1]
		assert.Nil(t, second.EntryTime)
		assert.Nil(t, second.ExitTime)
		assert.Nil(t, second.EntryPrice)
		assert.Nil(t, second.ExitReason)
	}
}

func TestBuildBacktestResult_EquityCurveDropsZeroTimestamps(t *testing.T) {
	art := &RunArtifact{
		Config: model.BacktestConfig{InitialCash: 100000},
		Equity: []engine.EquityPoint{
			{Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Value: 100000},
			{Timestamp: time.Time{}, Value: 101000},
			{Timestamp: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Value: 102000},
		},
	}

	result := BuildBacktestResult("job-5", art)

	if assert.Len(t, result.EquityCurve, 2) {
		assert.Equal(t, "2025-01-02T00:00:00Z", result.EquityCurve[0].Timestamp)
		assert.Equal(t, 102000.0, result.EquityCurve[1].Value)
	}
}

func TestBuildBacktestResult_Idempotent(t *testing.T) {
	art := &RunArtifact{
		FinalValue: 105000,
		Analyzers: engine.Analyzers{
			Trades:   engine.TradeSummary{Total: 2, Won: 1},
			Drawdown: engine.DrawdownReport{MaxPct: utils.ToPointer(0.08)},
			Sharpe:   engine.SharpeReport{Ratio: utils.ToPointer(1.1)},
		},
		Config: model.BacktestConfig{Symbol: "XAUUSD", InitialCash: 100000},
		Equity: []engine.EquityPoint{
			{Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Value: 105000},
		},
	}

	first := BuildBacktestResult("job-6", art)
	second := BuildBacktestResult("job-6", art)

	assert.Equal(t, first, second)
}
