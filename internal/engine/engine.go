package engine

import (
	"context"
	"fmt"
	"math"

	"backtest-api/pkg/logger"
	"backtest-api/pkg/utils"
)

// Engine runs one self-contained simulation: its own cash accounting, its own
// open position, no state shared with any other invocation.
type Engine interface {
	Run(ctx context.Context, in RunInput) (*RunResult, error)
}

type simEngine struct {
	log    *logger.Logger
	loader Loader
}

func New(log *logger.Logger, loader Loader) Engine {
	return &simEngine{log: log, loader: loader}
}

func (e *simEngine) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	desc, ok := Lookup(in.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", in.Strategy)
	}
	strat := desc.New(in.Params)

	start, err := utils.ParseDate(in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", in.StartDate, err)
	}
	end, err := utils.ParseDate(in.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", in.EndDate, err)
	}

	bars, err := e.loader.Load(ctx, in.DataFile, start, end)
	if err != nil {
		return nil, err
	}

	riskPercent := FloatParam(in.Params, "risk_percent", 1.0)
	forexCalc := BoolParam(in.Params, "use_forex_position_calc", false)
	contractSize := FloatParam(in.Params, "contract_size", 1000.0)
	commission := FloatParam(in.Params, "commission", 0.0)

	cash := in.InitialCash
	var pos *Position
	var trades []Trade
	equity := make([]EquityPoint, 0, len(bars))

	processed := 0
	for i := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Hard ceiling, not a hint: never touch a bar past the cap.
		if in.MaxBars > 0 && processed >= in.MaxBars {
			break
		}
		processed++
		bar := bars[i]

		sig := strat.Next(bars, i, pos)
		switch sig.Action {
		case ActionEnterLong, ActionEnterShort:
			if pos == nil {
				pos = openPosition(bar, sig, cash, riskPercent, forexCalc, contractSize)
			}
		case ActionExit:
			if pos != nil {
				trade, pnl := closePosition(pos, bar, sig.Reason, commission)
				cash += pnl
				trades = append(trades, trade)
				pos = nil
			}
		}

		equity = append(equity, EquityPoint{
			Timestamp: bar.Time,
			Value:     cash + unrealized(pos, bar.Close),
		})
	}

	if pos != nil {
		last := bars[processed-1]
		trade, pnl := closePosition(pos, last, "end_of_data", commission)
		cash += pnl
		trades = append(trades, trade)
		pos = nil
		equity[len(equity)-1].Value = cash
	}

	e.log.DebugContext(ctx, "Simulation run finished",
		logger.IntField("bars", processed),
		logger.IntField("trades", len(trades)),
		logger.Float64Field("final_value", cash),
	)

	return &RunResult{
		FinalValue: cash,
		Analyzers:  computeAnalyzers(trades, equity, in.InitialCash),
		Trades:     trades,
		Equity:     equity,
	}, nil
}

func openPosition(bar Bar, sig Signal, cash, riskPercent float64, forexCalc bool, contractSize float64) *Position {
	direction := DirectionLong
	if sig.Action == ActionEnterShort {
		direction = DirectionShort
	}

	stopDistance := abs(bar.Close - sig.Stop)
	if stopDistance <= 0 {
		return nil
	}

	size := (cash * riskPercent / 100.0) / stopDistance
	if forexCalc && contractSize > 0 {
		// Forex sizing trades whole contracts only.
		size = math.Floor(size/contractSize) * contractSize
	}
	if size <= 0 {
		return nil
	}

	return &Position{
		Direction:  direction,
		EntryPrice: bar.Close,
		Size:       size,
		Stop:       sig.Stop,
		EntryTime:  bar.Time,
	}
}

func closePosition(pos *Position, bar Bar, reason string, commission float64) (Trade, float64) {
	exitPrice := bar.Close
	pnl := (exitPrice - pos.EntryPrice) * pos.Size
	if pos.Direction == DirectionShort {
		pnl = -pnl
	}
	if commission > 0 {
		// Fractional commission charged on both legs' notional.
		pnl -= commission * pos.Size * (pos.EntryPrice + exitPrice)
	}

	entryTime := pos.EntryTime
	exitTime := bar.Time
	return Trade{
		EntryTime:  &entryTime,
		ExitTime:   &exitTime,
		Direction:  pos.Direction,
		EntryPrice: utils.ToPointer(pos.EntryPrice),
		ExitPrice:  utils.ToPointer(exitPrice),
		Size:       utils.ToPointer(pos.Size),
		Pnl:        utils.ToPointer(pnl),
		ExitReason: reason,
	}, pnl
}

func unrealized(pos *Position, price float64) float64 {
	if pos == nil {
		return 0
	}
	pnl := (price - pos.EntryPrice) * pos.Size
	if pos.Direction == DirectionShort {
		pnl = -pnl
	}
	return pnl
}
