package dto

import (
	"encoding/json"
	"time"
)

// BacktestRequest is the job submission payload. Unknown top-level fields are
// kept in Extra and treated as additional strategy-parameter overrides during
// configuration resolution.
type BacktestRequest struct {
	Symbol               string         `json:"symbol"`
	Timeframe            string         `json:"timeframe"`
	StartDate            *string        `json:"start_date"`
	EndDate              *string        `json:"end_date"`
	DataFile             *string        `json:"data_file"`
	InitialCash          *float64       `json:"initial_cash" validate:"omitempty,gt=0"`
	RiskPercent          *float64       `json:"risk_percent"`
	AtrMultiplier        *float64       `json:"atr_multiplier"`
	PullbackWindow       *int           `json:"pullback_window"`
	LimitBars            *int           `json:"limit_bars" validate:"omitempty,gte=0"`
	RunDualEngine        *bool          `json:"run_dual_engine"`
	UseForexPositionCalc *bool          `json:"use_forex_position_calc"`
	StrategyParams       map[string]any `json:"strategy_params"`

	Extra map[string]any `json:"-"`
}

// coreRequestFields are the top-level keys that are not strategy-parameter
// overrides.
var coreRequestFields = map[string]struct{}{
	"symbol":                  {},
	"timeframe":               {},
	"start_date":              {},
	"end_date":                {},
	"data_file":               {},
	"initial_cash":            {},
	"risk_percent":            {},
	"atr_multiplier":          {},
	"pullback_window":         {},
	"limit_bars":              {},
	"run_dual_engine":         {},
	"use_forex_position_calc": {},
	"strategy_params":         {},
}

func (r *BacktestRequest) UnmarshalJSON(data []byte) error {
	type plain BacktestRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range coreRequestFields {
		delete(raw, key)
	}

	*r = BacktestRequest(p)
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON restores the flattened extras so the stored request payload
// round-trips verbatim.
func (r BacktestRequest) MarshalJSON() ([]byte, error) {
	type plain BacktestRequest
	data, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// BacktestResponse is the job envelope returned by the submission and status
// endpoints. Result stays null until the job completes.
type BacktestResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Error     *string         `json:"error"`
	Result    json.RawMessage `json:"result"`
}

// TradeModel is one serialized trade record. Absent numeric fields mean the
// value was not computable from the underlying run.
type TradeModel struct {
	EntryTime  *string  `json:"entry_time"`
	ExitTime   *string  `json:"exit_time"`
	Direction  *string  `json:"direction"`
	EntryPrice *float64 `json:"entry_price"`
	ExitPrice  *float64 `json:"exit_price"`
	Size       *float64 `json:"size"`
	Pnl        *float64 `json:"pnl"`
	ExitReason *string  `json:"exit_reason"`
}

type EquityPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// BacktestResult is the caller-facing result payload. Constructed once,
// persisted, never mutated.
type BacktestResult struct {
	BacktestID     string         `json:"backtest_id"`
	Symbol         string         `json:"symbol"`
	Timeframe      string         `json:"timeframe"`
	StartDate      *string        `json:"start_date"`
	EndDate        *string        `json:"end_date"`
	InitialCash    float64        `json:"initial_cash"`
	FinalValue     float64        `json:"final_value"`
	NetProfit      float64        `json:"net_profit"`
	TotalReturnPct float64        `json:"total_return_pct"`
	MaxDrawdownPct float64        `json:"max_drawdown_pct"`
	SharpeRatio    *float64       `json:"sharpe_ratio"`
	TotalTrades    int            `json:"total_trades"`
	WinRatePct     float64        `json:"win_rate_pct"`
	TradeList      []TradeModel   `json:"trade_list"`
	EquityCurve    []EquityPoint  `json:"equity_curve"`
	StrategyParams map[string]any `json:"strategy_params"`
	CompletedAt    string         `json:"completed_at,omitempty"`
}

// EquityCurveResponse is the reduced view returned by the equity-curve endpoint.
type EquityCurveResponse struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// ParametersResponse echoes the default strategy parameter table.
type ParametersResponse struct {
	StrategyParams map[string]any `json:"strategy_params"`
}
