package engine

import "time"

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}

// Trade is one completed round trip. Nil fields mean the value was not
// captured by the run.
type Trade struct {
	EntryTime  *time.Time
	ExitTime   *time.Time
	Direction  string
	EntryPrice *float64
	ExitPrice  *float64
	Size       *float64
	Pnl        *float64
	ExitReason string
}

const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// TradeSummary mirrors the total/won counters of a trade analyzer.
type TradeSummary struct {
	Total int
	Won   int
}

type DrawdownReport struct {
	// MaxPct may be a fraction or a percentage depending on the reporting
	// convention of the run; the serializer disambiguates. Nil when the run
	// produced no equity data.
	MaxPct *float64
}

type SharpeReport struct {
	Ratio *float64
}

type ReturnsReport struct {
	Total      *float64
	Annualized *float64
}

// Analyzers bundles the per-run statistics reports.
type Analyzers struct {
	Trades   TradeSummary
	Drawdown DrawdownReport
	Sharpe   SharpeReport
	Returns  ReturnsReport
}

// RunInput fully describes one simulation invocation. MaxBars is a hard
// ceiling on processed bars, 0 means unlimited.
type RunInput struct {
	Strategy    string
	DataFile    string
	StartDate   string
	EndDate     string
	Symbol      string
	Timeframe   string
	InitialCash float64
	MaxBars     int
	Params      map[string]any
}

// RunResult is the raw artifact bundle of one simulation invocation.
type RunResult struct {
	FinalValue float64
	Analyzers  Analyzers
	Trades     []Trade
	Equity     []EquityPoint
}
