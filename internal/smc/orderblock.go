package smc

import "smc-signal-engine/internal/market"

// DetectOrderBlocks finds the last opposing candle before an impulsive move,
// read as the zone where institutional orders were placed. An impulsive move
// is ImpulseBars consecutive bars each closing further in one direction with
// a combined range of at least ImpulseRangeMult x local ATR. The block's zone
// is that single opposing candle's full low..high; its direction is the
// direction of the impulse that follows it.
func DetectOrderBlocks(bars []market.Bar, cfg Config) []Pattern {
	cfg = cfg.withDefaults()
	if len(bars) < cfg.MinHistory() {
		return nil
	}

	n := cfg.ImpulseBars
	var out []Pattern

	// s is the first bar of a candidate impulse; s-1 is the block candidate.
	for s := cfg.ATRPeriod + 1; s+n-1 < len(bars); s++ {
		atr := market.ATR(bars, s-1, cfg.ATRPeriod)
		if atr <= 0 {
			continue
		}

		dir, ok := impulseAt(bars, s, n, cfg.ImpulseRangeMult*atr)
		if !ok {
			continue
		}

		block := bars[s-1]
		if dir == Bullish && !block.IsBearish() {
			continue
		}
		if dir == Bearish && !block.IsBullish() {
			continue
		}

		out = append(out, Pattern{
			Kind:      OrderBlock,
			Direction: dir,
			FormedAt:  s - 1,
			Low:       block.Low,
			High:      block.High,
		})

		// The impulse is consumed; overlapping runs would re-report the
		// same structure.
		s += n - 1
	}

	return out
}

// impulseAt reports whether an impulsive move of n bars starts at index s and
// its direction. Each bar must close beyond the previous close in the same
// direction, and the run's combined high-low range must reach minRange.
func impulseAt(bars []market.Bar, s, n int, minRange float64) (Direction, bool) {
	up, down := true, true
	hi, lo := bars[s].High, bars[s].Low

	for i := s; i < s+n; i++ {
		if bars[i].Close <= bars[i-1].Close {
			up = false
		}
		if bars[i].Close >= bars[i-1].Close {
			down = false
		}
		if bars[i].High > hi {
			hi = bars[i].High
		}
		if bars[i].Low < lo {
			lo = bars[i].Low
		}
	}

	if hi-lo < minRange {
		return "", false
	}
	if up {
		return Bullish, true
	}
	if down {
		return Bearish, true
	}
	return "", false
}
