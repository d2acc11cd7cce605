package service

import (
	"testing"

	"backtest-api/config"
	"backtest-api/internal/dto"
	"backtest-api/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func testDefaults() config.Backtest {
	return config.Backtest{
		Strategy:         "pullback_window",
		DefaultSymbol:    "XAUUSD",
		DefaultTimeframe: "5m",
		DefaultStartDate: "2024-01-01",
		DefaultEndDate:   "2024-06-30",
		InitialCash:      100000,
	}
}

func baseStrategyParams() map[string]any {
	return map[string]any{
		"risk_percent":               1.0,
		"atr_period":                 14,
		"long_atr_sl_multiplier":     1.5,
		"short_atr_sl_multiplier":    1.5,
		"long_entry_window_periods":  5,
		"short_entry_window_periods": 5,
	}
}

func TestResolveConfig(t *testing.T) {
	t.Run("empty request falls back to process defaults", func(t *testing.T) {
		cfg := ResolveConfig(&dto.BacktestRequest{}, testDefaults(), baseStrategyParams())

		assert.Equal(t, "XAUUSD", cfg.Symbol)
		assert.Equal(t, "5m", cfg.Timeframe)
		assert.Equal(t, "2024-01-01", cfg.StartDate)
		assert.Equal(t, "2024-06-30", cfg.EndDate)
		assert.Equal(t, 100000.0, cfg.InitialCash)
		assert.Equal(t, "pullback_window", cfg.Strategy)
	})

	t.Run("request fields win over defaults", func(t *testing.T) {
		req := &dto.BacktestRequest{
			Symbol:      "EURUSD",
			Timeframe:   "1h",
			StartDate:   utils.ToPointer("2025-03-01"),
			EndDate:     utils.ToPointer("2025-03-31"),
			InitialCash: utils.ToPointer(50000.0),
			LimitBars:   utils.ToPointer(100),
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, "EURUSD", cfg.Symbol)
		assert.Equal(t, "1h", cfg.Timeframe)
		assert.Equal(t, "2025-03-01", cfg.StartDate)
		assert.Equal(t, "2025-03-31", cfg.EndDate)
		assert.Equal(t, 50000.0, cfg.InitialCash)
		assert.Equal(t, 100, cfg.LimitBars)
	})

	t.Run("risk_percent alias overrides strategy_params", func(t *testing.T) {
		req := &dto.BacktestRequest{
			RiskPercent:    utils.ToPointer(2.5),
			StrategyParams: map[string]any{"risk_percent": 9.0},
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, 2.5, cfg.StrategyParams["risk_percent"])
	})

	t.Run("atr_multiplier fans out to both sides", func(t *testing.T) {
		req := &dto.BacktestRequest{AtrMultiplier: utils.ToPointer(3.0)}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, 3.0, cfg.StrategyParams["long_atr_sl_multiplier"])
		assert.Equal(t, 3.0, cfg.StrategyParams["short_atr_sl_multiplier"])
	})

	t.Run("pullback_window fans out to both entry windows", func(t *testing.T) {
		req := &dto.BacktestRequest{PullbackWindow: utils.ToPointer(8)}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, 8, cfg.StrategyParams["long_entry_window_periods"])
		assert.Equal(t, 8, cfg.StrategyParams["short_entry_window_periods"])
	})

	t.Run("alias wins over extras and strategy_params", func(t *testing.T) {
		req := &dto.BacktestRequest{
			AtrMultiplier:  utils.ToPointer(2.0),
			StrategyParams: map[string]any{"long_atr_sl_multiplier": 7.0},
			Extra:          map[string]any{"long_atr_sl_multiplier": 8.0},
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, 2.0, cfg.StrategyParams["long_atr_sl_multiplier"])
	})

	t.Run("extras win over strategy_params", func(t *testing.T) {
		req := &dto.BacktestRequest{
			StrategyParams: map[string]any{"atr_period": 20},
			Extra:          map[string]any{"atr_period": 30},
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, 30, cfg.StrategyParams["atr_period"])
	})

	t.Run("unknown extras pass through as overrides", func(t *testing.T) {
		req := &dto.BacktestRequest{
			Extra: map[string]any{"custom_knob": 42.0},
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, 42.0, cfg.StrategyParams["custom_knob"])
	})

	t.Run("forex params reflect the resolved config", func(t *testing.T) {
		req := &dto.BacktestRequest{
			Symbol:               "GBPUSD",
			UseForexPositionCalc: utils.ToPointer(true),
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.True(t, cfg.UseForexPositionCalc)
		assert.Equal(t, true, cfg.StrategyParams["use_forex_position_calc"])
		assert.Equal(t, "GBPUSD", cfg.StrategyParams["forex_instrument"])
	})

	t.Run("base parameter table is never mutated", func(t *testing.T) {
		base := baseStrategyParams()
		req := &dto.BacktestRequest{RiskPercent: utils.ToPointer(5.0)}
		ResolveConfig(req, testDefaults(), base)

		assert.Equal(t, 1.0, base["risk_percent"])
	})

	t.Run("inverted date range is accepted as-is", func(t *testing.T) {
		req := &dto.BacktestRequest{
			StartDate: utils.ToPointer("2025-06-01"),
			EndDate:   utils.ToPointer("2025-01-01"),
		}
		cfg := ResolveConfig(req, testDefaults(), baseStrategyParams())

		assert.Equal(t, "2025-06-01", cfg.StartDate)
		assert.Equal(t, "2025-01-01", cfg.EndDate)
	})
}
