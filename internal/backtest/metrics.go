package backtest

import (
	"encoding/json"
	"math"

	"smc-signal-engine/internal/smc"
)

// Result is the full output of one backtest run: the trade log, the equity
// curve (starting equity followed by equity after each close) and the
// post-hoc summary.
type Result struct {
	Instrument     string    `json:"instrument"`
	StartingEquity float64   `json:"starting_equity"`
	FinalEquity    float64   `json:"final_equity"`
	Trades         []Trade   `json:"trades"`
	EquityCurve    []float64 `json:"equity_curve"`
	Summary        Summary   `json:"summary"`
}

// KindStats aggregates results for trades whose signal cluster contained a
// given pattern kind. A trade built on multiple kinds counts toward each.
type KindStats struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	NetPnL float64 `json:"net_pnl"`
}

// Summary holds the run's aggregate metrics. ProfitFactor is +Inf when there
// were profits but no losses, and 0 when there were neither.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`

	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	NetPnL       float64 `json:"net_pnl"`
	ProfitFactor float64 `json:"profit_factor"`

	AvgWin  float64 `json:"avg_win"`
	AvgLoss float64 `json:"avg_loss"`

	MaxDrawdown float64 `json:"max_drawdown"`
	ROIPct      float64 `json:"roi_pct"`

	ByKind map[smc.Kind]KindStats `json:"by_kind"`
}

// MarshalJSON renders an infinite profit factor as null; JSON has no
// representation for +Inf and encoding/json refuses it outright.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	out := struct {
		alias
		ProfitFactor interface{} `json:"profit_factor"`
	}{alias: alias(s), ProfitFactor: s.ProfitFactor}
	if math.IsInf(s.ProfitFactor, 0) {
		out.ProfitFactor = nil
	}
	return json.Marshal(out)
}

// Summarize computes the aggregate metrics for a finished run.
func Summarize(trades []Trade, curve []float64, startingEquity float64) Summary {
	s := Summary{
		TotalTrades: len(trades),
		ByKind:      make(map[smc.Kind]KindStats),
	}

	for i := range trades {
		t := &trades[i]
		s.NetPnL += t.PnL
		if t.Win() {
			s.Wins++
			s.GrossProfit += t.PnL
		} else {
			s.Losses++
			s.GrossLoss += -t.PnL
		}
		for _, k := range t.PatternKinds {
			ks := s.ByKind[k]
			ks.Trades++
			if t.Win() {
				ks.Wins++
			}
			ks.NetPnL += t.PnL
			s.ByKind[k] = ks
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.Losses)
	}

	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}

	s.MaxDrawdown = maxDrawdown(curve)
	if startingEquity > 0 {
		s.ROIPct = s.NetPnL / startingEquity * 100
	}
	return s
}

// maxDrawdown is the largest peak-to-trough decline along the equity curve.
func maxDrawdown(curve []float64) float64 {
	peak, dd := math.Inf(-1), 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if d := peak - v; d > dd {
			dd = d
		}
	}
	return dd
}
