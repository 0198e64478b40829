package smc

import (
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/swing"
)

// DetectLiquiditySweeps finds brief excursions beyond prior swing levels that
// reverse, read as stop-loss clearing by large participants. Sweeping a swing
// high is bearish (liquidity taken above, reversal down expected); sweeping a
// swing low is bullish.
//
// For each swing point the forward scan runs until either a bar pierces
// beyond the swing price by at least SweepNoiseMult x local ATR and the close
// reverses back across the level within the same or next bar (a sweep), or
// SweepMaxLookahead bars elapse without a pierce (no sweep). A pierce that
// never reverses is not a sweep either: that is a genuine breakout.
func DetectLiquiditySweeps(bars []market.Bar, swings []swing.Point, cfg Config) []Pattern {
	cfg = cfg.withDefaults()
	if len(bars) < cfg.MinHistory() {
		return nil
	}

	var out []Pattern
	for i := range swings {
		sw := swings[i]
		if p, ok := sweepOf(bars, sw, cfg); ok {
			p.SourceSwing = &swings[i]
			out = append(out, p)
		}
	}
	return out
}

func sweepOf(bars []market.Bar, sw swing.Point, cfg Config) (Pattern, bool) {
	limit := sw.Index + cfg.SweepMaxLookahead
	if limit > len(bars)-1 {
		limit = len(bars) - 1
	}

	for j := sw.Index + 1; j <= limit; j++ {
		noise := cfg.SweepNoiseMult * market.ATR(bars, j, cfg.ATRPeriod)
		if noise <= 0 {
			continue
		}

		if sw.Kind == swing.High {
			if bars[j].High < sw.Price+noise {
				continue
			}
			// Pierced above the high: a sweep only if the close comes back
			// under the level on this bar or the next.
			if bars[j].Close < sw.Price {
				return highSweep(bars, sw, j, j), true
			}
			if j+1 < len(bars) && bars[j+1].Close < sw.Price {
				return highSweep(bars, sw, j, j+1), true
			}
			return Pattern{}, false
		}

		if bars[j].Low > sw.Price-noise {
			continue
		}
		if bars[j].Close > sw.Price {
			return lowSweep(bars, sw, j, j), true
		}
		if j+1 < len(bars) && bars[j+1].Close > sw.Price {
			return lowSweep(bars, sw, j, j+1), true
		}
		return Pattern{}, false
	}

	return Pattern{}, false
}

func highSweep(bars []market.Bar, sw swing.Point, pierceIdx, confirmIdx int) Pattern {
	return Pattern{
		Kind:      LiquiditySweep,
		Direction: Bearish,
		FormedAt:  confirmIdx,
		Low:       sw.Price,
		High:      bars[pierceIdx].High,
	}
}

func lowSweep(bars []market.Bar, sw swing.Point, pierceIdx, confirmIdx int) Pattern {
	return Pattern{
		Kind:      LiquiditySweep,
		Direction: Bullish,
		FormedAt:  confirmIdx,
		Low:       bars[pierceIdx].Low,
		High:      sw.Price,
	}
}
