package engine

import "time"

type Action int

const (
	ActionHold Action = iota
	ActionEnterLong
	ActionEnterShort
	ActionExit
)

// Signal is the decision a strategy emits for the current bar. Stop is only
// meaningful on entries.
type Signal struct {
	Action Action
	Stop   float64
	Reason string
}

// Position is the open-position view handed to the strategy. The engine owns
// the actual account bookkeeping.
type Position struct {
	Direction  string
	EntryPrice float64
	Size       float64
	Stop       float64
	EntryTime  time.Time
}

// Strategy observes the bar at index i and decides what to do. Bars before i
// are history; bars after i must not be inspected.
type Strategy interface {
	Next(bars []Bar, i int, pos *Position) Signal
}

// Descriptor describes one registered strategy variant: how to build an
// instance and its default parameter table.
type Descriptor struct {
	New           func(params map[string]any) Strategy
	DefaultParams func() map[string]any
}

var registry = map[string]Descriptor{}

// Register adds a strategy variant to the registry. Called from init, before
// any job runs.
func Register(name string, desc Descriptor) {
	registry[name] = desc
}

func Lookup(name string) (Descriptor, bool) {
	desc, ok := registry[name]
	return desc, ok
}

// DefaultParams returns a copy of the default parameter table for name, or nil
// when the strategy is unknown.
func DefaultParams(name string) map[string]any {
	desc, ok := registry[name]
	if !ok {
		return nil
	}
	return CloneParams(desc.DefaultParams())
}

func init() {
	Register("pullback_window", Descriptor{
		New:           newPullbackWindow,
		DefaultParams: pullbackWindowDefaults,
	})
}

func pullbackWindowDefaults() map[string]any {
	return map[string]any{
		"risk_percent":               1.0,
		"atr_period":                 14,
		"long_atr_sl_multiplier":     1.5,
		"short_atr_sl_multiplier":    1.5,
		"long_entry_window_periods":  5,
		"short_entry_window_periods": 5,
		"enable_long_trades":         true,
		"enable_short_trades":        true,
		"long_enabled":               true,
		"short_enabled":              true,
		"use_forex_position_calc":    false,
		"forex_instrument":           "XAUUSD",
		"contract_size":              1000.0,
		"commission":                 0.0,
	}
}

// pullbackWindow trades breakouts of a rolling entry window with an ATR-based
// protective stop. Long and short sides are gated independently so a dual-run
// can isolate one side per simulation.
type pullbackWindow struct {
	riskPercent  float64
	atrPeriod    int
	longWindow   int
	shortWindow  int
	longAtrMult  float64
	shortAtrMult float64
	longEnabled  bool
	shortEnabled bool
}

func newPullbackWindow(params map[string]any) Strategy {
	return &pullbackWindow{
		riskPercent:  FloatParam(params, "risk_percent", 1.0),
		atrPeriod:    IntParam(params, "atr_period", 14),
		longWindow:   IntParam(params, "long_entry_window_periods", 5),
		shortWindow:  IntParam(params, "short_entry_window_periods", 5),
		longAtrMult:  FloatParam(params, "long_atr_sl_multiplier", 1.5),
		shortAtrMult: FloatParam(params, "short_atr_sl_multiplier", 1.5),
		longEnabled:  BoolParam(params, "enable_long_trades", true) && BoolParam(params, "long_enabled", true),
		shortEnabled: BoolParam(params, "enable_short_trades", true) && BoolParam(params, "short_enabled", true),
	}
}

func (s *pullbackWindow) Next(bars []Bar, i int, pos *Position) Signal {
	warmup := s.atrPeriod
	if s.longWindow > warmup {
		warmup = s.longWindow
	}
	if s.shortWindow > warmup {
		warmup = s.shortWindow
	}
	if i < warmup {
		return Signal{Action: ActionHold}
	}

	bar := bars[i]

	if pos != nil {
		switch pos.Direction {
		case DirectionLong:
			if bar.Low <= pos.Stop {
				return Signal{Action: ActionExit, Reason: "atr_stop"}
			}
			if s.shortEnabled && bar.Close < lowestLow(bars, i-s.shortWindow, i) {
				return Signal{Action: ActionExit, Reason: "reversal"}
			}
		case DirectionShort:
			if bar.High >= pos.Stop {
				return Signal{Action: ActionExit, Reason: "atr_stop"}
			}
			if s.longEnabled && bar.Close > highestHigh(bars, i-s.longWindow, i) {
				return Signal{Action: ActionExit, Reason: "reversal"}
			}
		}
		return Signal{Action: ActionHold}
	}

	atrValue := atr(bars, i, s.atrPeriod)
	if atrValue <= 0 {
		return Signal{Action: ActionHold}
	}

	if s.longEnabled && bar.Close > highestHigh(bars, i-s.longWindow, i) {
		return Signal{
			Action: ActionEnterLong,
			Stop:   bar.Close - s.longAtrMult*atrValue,
		}
	}
	if s.shortEnabled && bar.Close < lowestLow(bars, i-s.shortWindow, i) {
		return Signal{
			Action: ActionEnterShort,
			Stop:   bar.Close + s.shortAtrMult*atrValue,
		}
	}

	return Signal{Action: ActionHold}
}

// highestHigh returns the maximum high of bars[from:to] (to exclusive).
func highestHigh(bars []Bar, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	highest := bars[from].High
	for _, b := range bars[from+1 : to] {
		if b.High > highest {
			highest = b.High
		}
	}
	return highest
}

// lowestLow returns the minimum low of bars[from:to] (to exclusive).
func lowestLow(bars []Bar, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	lowest := bars[from].Low
	for _, b := range bars[from+1 : to] {
		if b.Low < lowest {
			lowest = b.Low
		}
	}
	return lowest
}

// atr is the simple average true range over the last period bars ending at i.
func atr(bars []Bar, i, period int) float64 {
	if period <= 0 || i < period {
		return 0
	}
	var sum float64
	for j := i - period + 1; j <= i; j++ {
		tr := bars[j].High - bars[j].Low
		prevClose := bars[j-1].Close
		if hc := abs(bars[j].High - prevClose); hc > tr {
			tr = hc
		}
		if lc := abs(bars[j].Low - prevClose); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
