package engine

import (
	"testing"
	"time"

	"backtest-api/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func equitySeries(values ...float64) []EquityPoint {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]EquityPoint, 0, len(values))
	for i, v := range values {
		out = append(out, EquityPoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Value: v})
	}
	return out
}

func TestTradeSummary(t *testing.T) {
	trades := []Trade{
		{Pnl: utils.ToPointer(100.0)},
		{Pnl: utils.ToPointer(-50.0)},
		{Pnl: utils.ToPointer(0.0)},
		{Pnl: nil},
	}

	summary := tradeSummary(trades)

	assert.Equal(t, 4, summary.Total)
	// Breakeven and unpriced trades do not count as wins.
	assert.Equal(t, 1, summary.Won)
}

func TestDrawdownReport(t *testing.T) {
	tests := []struct {
		name   string
		equity []EquityPoint
		want   *float64
	}{
		{
			name:   "no equity yields nil",
			equity: nil,
			want:   nil,
		},
		{
			name:   "monotonic rise has zero drawdown",
			equity: equitySeries(100, 110, 120),
			want:   utils.ToPointer(0.0),
		},
		{
			name:   "peak to trough in percent",
			equity: equitySeries(100, 120, 90, 110),
			want:   utils.ToPointer(25.0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := drawdownReport(tt.equity)
			if tt.want == nil {
				assert.Nil(t, report.MaxPct)
			} else if assert.NotNil(t, report.MaxPct) {
				assert.InDelta(t, *tt.want, *report.MaxPct, 1e-9)
			}
		})
	}
}

func TestSharpeReport(t *testing.T) {
	t.Run("too few points yields nil", func(t *testing.T) {
		assert.Nil(t, sharpeReport(equitySeries(100, 101)).Ratio)
	})

	t.Run("constant equity yields nil", func(t *testing.T) {
		assert.Nil(t, sharpeReport(equitySeries(100, 100, 100, 100)).Ratio)
	})

	t.Run("varying equity yields a finite ratio", func(t *testing.T) {
		ratio := sharpeReport(equitySeries(100, 102, 101, 104, 103)).Ratio
		if assert.NotNil(t, ratio) {
			assert.NotZero(t, *ratio)
		}
	})
}

func TestReturnsReport(t *testing.T) {
	t.Run("empty equity yields empty report", func(t *testing.T) {
		report := returnsReport(nil, 100000)
		assert.Nil(t, report.Total)
		assert.Nil(t, report.Annualized)
	})

	t.Run("flat run yields zero total return", func(t *testing.T) {
		report := returnsReport(equitySeries(100000, 100000), 100000)
		if assert.NotNil(t, report.Total) {
			assert.InDelta(t, 0.0, *report.Total, 1e-9)
		}
	})
}
