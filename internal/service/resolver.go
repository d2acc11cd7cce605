package service

import (
	"backtest-api/config"
	"backtest-api/internal/dto"
	"backtest-api/internal/engine"
	"backtest-api/internal/model"
)

// ResolveConfig merges a submission with process defaults and the strategy's
// base parameter table into one immutable simulation configuration. Pure
// function; precedence, lowest to highest: base defaults, strategy_params
// overrides, unrecognized top-level extras, then the named alias fields.
func ResolveConfig(req *dto.BacktestRequest, defaults config.Backtest, baseParams map[string]any) model.BacktestConfig {
	params := engine.CloneParams(baseParams)
	for k, v := range req.StrategyParams {
		params[k] = v
	}
	for k, v := range req.Extra {
		params[k] = v
	}

	// Named aliases win over anything above. One client-facing field may fan
	// out to several underlying parameters.
	if req.RiskPercent != nil {
		params["risk_percent"] = *req.RiskPercent
	}
	if req.AtrMultiplier != nil {
		params["long_atr_sl_multiplier"] = *req.AtrMultiplier
		params["short_atr_sl_multiplier"] = *req.AtrMultiplier
	}
	if req.PullbackWindow != nil {
		params["long_entry_window_periods"] = *req.PullbackWindow
		params["short_entry_window_periods"] = *req.PullbackWindow
	}

	cfg := model.BacktestConfig{
		Symbol:               defaults.DefaultSymbol,
		Timeframe:            defaults.DefaultTimeframe,
		StartDate:            defaults.DefaultStartDate,
		EndDate:              defaults.DefaultEndDate,
		InitialCash:          defaults.InitialCash,
		LimitBars:            defaults.LimitBars,
		RunDualEngine:        defaults.DualRun,
		UseForexPositionCalc: defaults.UseForexPositionCalc,
		Strategy:             defaults.Strategy,
		StrategyParams:       params,
	}

	if req.Symbol != "" {
		cfg.Symbol = req.Symbol
	}
	if req.Timeframe != "" {
		cfg.Timeframe = req.Timeframe
	}
	// Client dates win; both values are date-only. A start after end is not
	// rejected here: the run simply sees an empty bar range.
	if req.StartDate != nil {
		cfg.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		cfg.EndDate = *req.EndDate
	}
	if req.DataFile != nil {
		cfg.DataFile = *req.DataFile
	}
	if req.InitialCash != nil {
		cfg.InitialCash = *req.InitialCash
	}
	if req.LimitBars != nil {
		cfg.LimitBars = *req.LimitBars
	}
	if req.RunDualEngine != nil {
		cfg.RunDualEngine = *req.RunDualEngine
	}
	if req.UseForexPositionCalc != nil {
		cfg.UseForexPositionCalc = *req.UseForexPositionCalc
	}

	params["use_forex_position_calc"] = cfg.UseForexPositionCalc
	params["forex_instrument"] = cfg.Symbol

	return cfg
}
