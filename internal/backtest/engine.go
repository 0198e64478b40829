package backtest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/smc"
	"smc-signal-engine/internal/swing"
)

// Config holds the simulation parameters. Detector and scorer settings are
// embedded so a backtest run is reproducible from one value.
type Config struct {
	StartingEquity float64 `json:"starting_equity"`
	// MaxHoldingBars closes a trade at the bar close once it has been open
	// this many bars without hitting stop or target.
	MaxHoldingBars int `json:"max_holding_bars"`
	// CommissionPct is charged on the notional of each fill, entry and exit.
	CommissionPct float64 `json:"commission_pct"`
	// LotSize is the instrument's minimum tradable unit.
	LotSize float64 `json:"lot_size"`

	SwingWindow int           `json:"swing_window"`
	Detector    smc.Config    `json:"detector"`
	Scorer      signal.Config `json:"scorer"`
}

// DefaultConfig returns the simulation defaults: 10k starting equity, a two
// day holding cap on 15 minute bars, no commission.
func DefaultConfig() Config {
	return Config{
		StartingEquity: 10_000,
		MaxHoldingBars: 48,
		LotSize:        1,
		SwingWindow:    swing.DefaultWindow,
		Detector:       smc.DefaultConfig(),
		Scorer:         signal.DefaultConfig(),
	}
}

// Engine drives the state machine over one instrument's bar sequence. It is
// single use per Run call and holds no state between runs.
type Engine struct {
	cfg      Config
	sessions *session.Table
	scorer   *signal.Scorer
	sizer    *signal.Sizer
	log      zerolog.Logger
}

// New creates an engine. A nil session table falls back to the default forex
// table.
func New(cfg Config, sessions *session.Table, log zerolog.Logger) *Engine {
	if cfg.StartingEquity <= 0 {
		cfg.StartingEquity = DefaultConfig().StartingEquity
	}
	if cfg.MaxHoldingBars <= 0 {
		cfg.MaxHoldingBars = DefaultConfig().MaxHoldingBars
	}
	if sessions == nil {
		sessions = session.Default()
	}
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		scorer:   signal.NewScorer(cfg.Scorer),
		sizer:    signal.NewSizer(cfg.LotSize),
		log:      log,
	}
}

// Run replays the bar sequence through detection, scoring and fill
// simulation. Bars must be in strictly increasing timestamp order; the
// sequence is materialized into a store first so violations fail with
// market.ErrOutOfOrderBar instead of simulating garbage. One position at a
// time, entries at the next bar's open, stop assumed hit before target when
// both land in the same bar, and any position still open at the end is
// closed at the final close as a timeout.
func (e *Engine) Run(instrument string, bars []market.Bar) (*Result, error) {
	store, err := market.NewStoreWithBars(instrument, bars)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", instrument, err)
	}
	bars = store.Bars()

	if err := e.cfg.Detector.CheckHistory(bars); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", instrument, err)
	}

	equity := e.cfg.StartingEquity
	curve := []float64{equity}
	var trades []Trade

	var open *Trade
	var pending *signal.Candidate
	tradesPerDay := make(map[string]int)

	for i := range bars {
		bar := bars[i]

		if open == nil && pending != nil {
			open = e.openTrade(instrument, pending, i, bar)
			pending = nil
			e.log.Debug().
				Str("instrument", instrument).
				Str("direction", string(open.Direction)).
				Float64("entry", open.EntryPrice).
				Int("bar", i).
				Msg("trade opened")
			// Exits are evaluated from the next bar on.
			continue
		}

		if open != nil {
			if done := e.checkExit(open, i, bar); done {
				equity = e.settle(open, equity)
				trades = append(trades, *open)
				curve = append(curve, equity)
				open = nil
			}
			continue
		}

		// Idle: scan for a candidate, but only when a next bar exists to
		// fill the entry.
		if i+1 >= len(bars) {
			continue
		}
		window := bars[:i+1]
		if e.cfg.Detector.CheckHistory(window) != nil {
			continue
		}
		sessName, sessParams := e.sessions.Resolve(bar.Timestamp)
		day := bar.Timestamp.UTC().Format("2006-01-02")
		if tradesPerDay[day] >= sessParams.MaxTradesPerDay {
			continue
		}

		swings := swing.Extract(window, e.cfg.SwingWindow)
		patterns := smc.Detect(window, swings, e.cfg.Detector)
		cand := e.scorer.Score(instrument, window, patterns, i, sessName, sessParams)
		if cand == nil {
			continue
		}
		e.sizer.Apply(cand, equity, sessParams.RiskPerTradePct)
		if cand.PositionSize <= 0 {
			continue
		}
		cand.ID = uuid.NewString()
		tradesPerDay[day]++
		pending = cand
	}

	if open != nil {
		last := len(bars) - 1
		e.close(open, last, bars[last], bars[last].Close, CloseTimeout)
		equity = e.settle(open, equity)
		trades = append(trades, *open)
		curve = append(curve, equity)
	}

	res := &Result{
		Instrument:     instrument,
		StartingEquity: e.cfg.StartingEquity,
		FinalEquity:    equity,
		Trades:         trades,
		EquityCurve:    curve,
		Summary:        Summarize(trades, curve, e.cfg.StartingEquity),
	}
	e.log.Info().
		Str("instrument", instrument).
		Int("trades", len(trades)).
		Float64("final_equity", equity).
		Msg("backtest complete")
	return res, nil
}

func (e *Engine) openTrade(instrument string, cand *signal.Candidate, idx int, bar market.Bar) *Trade {
	return &Trade{
		ID:           cand.ID,
		Instrument:   instrument,
		Direction:    cand.Direction,
		Session:      cand.Session,
		Confidence:   cand.Confidence,
		Quality:      cand.Quality,
		PatternKinds: cand.Kinds(),
		EntryBar:     idx,
		EntryTime:    bar.Timestamp,
		EntryPrice:   bar.Open,
		StopPrice:    cand.StopPrice,
		TargetPrice:  cand.TargetPrice,
		PositionSize: cand.PositionSize,
	}
}

// checkExit applies the fill rules for one bar: stop before target when both
// are inside the bar's range, then the holding timeout at the bar close.
func (e *Engine) checkExit(t *Trade, idx int, bar market.Bar) bool {
	if t.Direction == smc.Bullish {
		if bar.Low <= t.StopPrice {
			e.close(t, idx, bar, t.StopPrice, CloseStop)
			return true
		}
		if bar.High >= t.TargetPrice {
			e.close(t, idx, bar, t.TargetPrice, CloseTarget)
			return true
		}
	} else {
		if bar.High >= t.StopPrice {
			e.close(t, idx, bar, t.StopPrice, CloseStop)
			return true
		}
		if bar.Low <= t.TargetPrice {
			e.close(t, idx, bar, t.TargetPrice, CloseTarget)
			return true
		}
	}
	if idx-t.EntryBar >= e.cfg.MaxHoldingBars {
		e.close(t, idx, bar, bar.Close, CloseTimeout)
		return true
	}
	return false
}

func (e *Engine) close(t *Trade, idx int, bar market.Bar, price float64, reason CloseReason) {
	t.ExitBar = idx
	t.ExitTime = bar.Timestamp
	t.ExitPrice = price
	t.Reason = reason
}

// settle computes the trade's net result and returns the updated equity.
func (e *Engine) settle(t *Trade, equity float64) float64 {
	gross := (t.ExitPrice - t.EntryPrice) * t.PositionSize
	if t.Direction == smc.Bearish {
		gross = -gross
	}
	t.Commission = e.cfg.CommissionPct / 100.0 * t.PositionSize * (t.EntryPrice + t.ExitPrice)
	t.PnL = gross - t.Commission
	return equity + t.PnL
}
