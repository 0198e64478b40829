// Package session maps timestamps to forex trading sessions and supplies the
// per-session risk and filter overrides used by the scorer and backtester.
package session

import (
	"fmt"
	"time"

	"smc-signal-engine/internal/smc"
)

// Name identifies a trading session.
type Name string

const (
	Tokyo           Name = "TOKYO"
	London          Name = "LONDON"
	NewYork         Name = "NEW_YORK"
	LondonNYOverlap Name = "LONDON_NY_OVERLAP"
	DeadZone        Name = "DEAD_ZONE"
)

// Params are the session-specific overrides applied on top of the base
// configuration. Overlap hours get their own entry with its own parameter
// set rather than merging the two constituent sessions.
type Params struct {
	MinConfidence   float64 `json:"min_confidence"`
	MinQuality      float64 `json:"min_quality"`
	MaxTradesPerDay int     `json:"max_trades_per_day"`
	RiskPerTradePct float64 `json:"risk_per_trade_pct"`
	// Bias is an optional directional lean for the session; empty means none.
	Bias smc.Direction `json:"bias,omitempty"`
}

// Window is one session's UTC hour range. Start == End would be an empty
// window and is rejected by config validation; Start > End wraps midnight.
type Window struct {
	Name  Name   `json:"name"`
	Start int    `json:"utc_start_hour"`
	End   int    `json:"utc_end_hour"`
	Param Params `json:"params"`
}

// Table resolves timestamps against a fixed, ordered list of session windows.
// Earlier entries take priority, which is how the London/NY overlap wins over
// its two constituent sessions. Lookup is O(len(windows)) over a handful of
// entries and carries no state.
type Table struct {
	windows []Window
	dead    Params
}

// Default returns the standard forex session table. Hour ranges follow the
// usual UTC convention: Tokyo 00-09, London 08-17, New York 13-22, with the
// 13-17 London/NY overlap listed first so it takes priority. Hours outside
// every window are the dead zone, which trades nothing by default.
func Default() *Table {
	return &Table{
		windows: []Window{
			{Name: LondonNYOverlap, Start: 13, End: 17, Param: Params{
				MinConfidence: 0.75, MinQuality: 0.65, MaxTradesPerDay: 4, RiskPerTradePct: 0.75,
			}},
			{Name: London, Start: 8, End: 17, Param: Params{
				MinConfidence: 0.75, MinQuality: 0.65, MaxTradesPerDay: 4, RiskPerTradePct: 0.6,
			}},
			{Name: NewYork, Start: 13, End: 22, Param: Params{
				MinConfidence: 0.75, MinQuality: 0.65, MaxTradesPerDay: 4, RiskPerTradePct: 0.65,
			}},
			{Name: Tokyo, Start: 0, End: 9, Param: Params{
				MinConfidence: 0.78, MinQuality: 0.65, MaxTradesPerDay: 3, RiskPerTradePct: 0.5,
			}},
		},
		dead: Params{
			MinConfidence: 0.85, MinQuality: 0.75, MaxTradesPerDay: 1, RiskPerTradePct: 0.3,
		},
	}
}

// NewTable builds a table from configured windows. Priority follows list
// order; timestamps matching no window resolve to the dead zone with the
// given parameters.
func NewTable(windows []Window, deadZone Params) (*Table, error) {
	for i, w := range windows {
		if w.Start < 0 || w.Start > 23 || w.End < 0 || w.End > 24 {
			return nil, fmt.Errorf("session %q: hours out of range [%d, %d)", w.Name, w.Start, w.End)
		}
		if w.Start == w.End {
			return nil, fmt.Errorf("session %q: empty hour window", w.Name)
		}
		if w.Name == "" {
			return nil, fmt.Errorf("session window %d: missing name", i)
		}
	}
	return &Table{windows: windows, dead: deadZone}, nil
}

// DeadZoneParams returns the parameters applied outside every window.
func (tb *Table) DeadZoneParams() Params {
	return tb.dead
}

// Resolve returns the single primary session active at t and its parameters.
// Every timestamp resolves to exactly one session.
func (tb *Table) Resolve(t time.Time) (Name, Params) {
	hour := t.UTC().Hour()
	for _, w := range tb.windows {
		if hourIn(hour, w.Start, w.End) {
			return w.Name, w.Param
		}
	}
	return DeadZone, tb.dead
}

func hourIn(hour, start, end int) bool {
	if start < end {
		return hour >= start && hour < end
	}
	// Wraps midnight, e.g. 21-06.
	return hour >= start || hour < end
}
