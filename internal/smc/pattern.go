// Package smc implements the smart-money pattern detectors: liquidity sweeps,
// order blocks, fair value gaps and breaker blocks. Every detector is a pure
// function from (bars, swings) to zero or more pattern values; the scorer,
// not the detectors, resolves overlap and disagreement between them.
package smc

import (
	"fmt"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/swing"
)

// Kind identifies one of the four pattern variants. Patterns are a closed set,
// so consumers branch on the kind tag instead of a type hierarchy.
type Kind string

const (
	LiquiditySweep Kind = "liquidity_sweep"
	OrderBlock     Kind = "order_block"
	FairValueGap   Kind = "fair_value_gap"
	BreakerBlock   Kind = "breaker_block"
)

// Direction is the trade direction a pattern argues for.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Opposite returns the flipped direction.
func (d Direction) Opposite() Direction {
	if d == Bullish {
		return Bearish
	}
	return Bullish
}

// Pattern is one detected pattern instance. It references bars by index into
// the sequence it was computed from and never outlives that window; it is a
// value, not a long-lived object.
type Pattern struct {
	Kind      Kind      `json:"kind"`
	Direction Direction `json:"direction"`
	// FormedAt is the bar index at which the pattern became observable.
	FormedAt int `json:"formed_at"`
	// Low and High bound the pattern's price zone.
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	// SourceSwing is the swing point the pattern keyed off, when there is one.
	SourceSwing *swing.Point `json:"source_swing,omitempty"`
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s %s @%d [%.5f, %.5f]", p.Direction, p.Kind, p.FormedAt, p.Low, p.High)
}

// Config holds the detector tuning parameters. Zero values are replaced by
// defaults; out-of-range values are rejected up front by config validation,
// never clamped here.
type Config struct {
	ATRPeriod         int     // trailing ATR window for thresholds
	SweepNoiseMult    float64 // pierce threshold as a multiple of local ATR
	SweepMaxLookahead int     // bars scanned forward from a swing for a sweep
	ImpulseBars       int     // consecutive directional closes for an impulse
	ImpulseRangeMult  float64 // impulse combined range as a multiple of ATR
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:         market.DefaultATRPeriod,
		SweepNoiseMult:    0.15,
		SweepMaxLookahead: 20,
		ImpulseBars:       3,
		ImpulseRangeMult:  2.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	if c.SweepNoiseMult <= 0 {
		c.SweepNoiseMult = d.SweepNoiseMult
	}
	if c.SweepMaxLookahead <= 0 {
		c.SweepMaxLookahead = d.SweepMaxLookahead
	}
	if c.ImpulseBars <= 0 {
		c.ImpulseBars = d.ImpulseBars
	}
	if c.ImpulseRangeMult <= 0 {
		c.ImpulseRangeMult = d.ImpulseRangeMult
	}
	return c
}

// MinHistory is the shortest bar window the detectors can work with; shorter
// input yields empty results (observably equivalent to "no pattern" for
// downstream consumers).
func (c Config) MinHistory() int {
	return c.withDefaults().ATRPeriod + 1
}

// CheckHistory reports market.ErrInsufficientHistory when the window is too
// short for detection. Detectors do not fail on short input; this diagnostic
// exists so callers can tell "no pattern" from "not enough data".
func (c Config) CheckHistory(bars []market.Bar) error {
	if len(bars) < c.MinHistory() {
		return fmt.Errorf("%w: have %d bars, need %d",
			market.ErrInsufficientHistory, len(bars), c.MinHistory())
	}
	return nil
}

// Detect runs all four detectors over the window and returns their combined
// output ordered by formation index. Order blocks that were later violated
// are reported only as breaker blocks, not twice.
func Detect(bars []market.Bar, swings []swing.Point, cfg Config) []Pattern {
	cfg = cfg.withDefaults()

	var out []Pattern
	out = append(out, DetectLiquiditySweeps(bars, swings, cfg)...)

	blocks := DetectOrderBlocks(bars, cfg)
	breakers := DetectBreakerBlocks(bars, blocks)
	for _, ob := range blocks {
		if !violatedBlock(ob, breakers) {
			out = append(out, ob)
		}
	}
	out = append(out, breakers...)
	out = append(out, DetectFairValueGaps(bars)...)

	sortByFormation(out)
	return out
}

func violatedBlock(ob Pattern, breakers []Pattern) bool {
	for _, b := range breakers {
		if b.Low == ob.Low && b.High == ob.High && b.Direction == ob.Direction.Opposite() {
			return true
		}
	}
	return false
}

func sortByFormation(ps []Pattern) {
	// Insertion sort: pattern counts per window are tiny.
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j-1].FormedAt > ps[j].FormedAt; j-- {
			ps[j-1], ps[j] = ps[j], ps[j-1]
		}
	}
}
