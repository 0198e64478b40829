// Package backtest replays historical bars through the full detection and
// scoring pipeline and simulates fills against each candidate's stop and
// target, producing a trade log, an equity curve and summary metrics.
package backtest

import (
	"time"

	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/smc"
)

// CloseReason records why a simulated trade was closed.
type CloseReason string

const (
	CloseTarget  CloseReason = "target"
	CloseStop    CloseReason = "stop"
	CloseTimeout CloseReason = "timeout"
)

// Trade is one simulated round trip. Entry always fills at the open of the
// bar after the signal bar; exits fill at the stop or target level, or at the
// close for timeouts.
type Trade struct {
	ID         string        `json:"id"`
	Instrument string        `json:"instrument"`
	Direction  smc.Direction `json:"direction"`

	Session      session.Name `json:"session"`
	Confidence   float64      `json:"confidence"`
	Quality      float64      `json:"quality"`
	PatternKinds []smc.Kind   `json:"pattern_kinds"`

	EntryBar  int       `json:"entry_bar"`
	ExitBar   int       `json:"exit_bar"`
	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`

	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`

	PositionSize float64 `json:"position_size"`
	Commission   float64 `json:"commission"`
	PnL          float64 `json:"pnl"`

	Reason CloseReason `json:"reason"`
}

// Win reports whether the trade closed with a positive net result.
func (t *Trade) Win() bool {
	return t.PnL > 0
}
