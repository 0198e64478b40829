package smc

import "smc-signal-engine/internal/market"

// DetectFairValueGaps scans every consecutive bar triple (A, B, C) for a
// price discontinuity: a bullish gap when A.High < C.Low (the untraded range
// between them), a bearish gap when A.Low > C.High. Only gaps still active at
// the end of the window are returned: a gap is dropped once later price fully
// covers it, and a partially filled gap keeps only its unfilled remainder as
// the effective zone.
func DetectFairValueGaps(bars []market.Bar) []Pattern {
	if len(bars) < 3 {
		return nil
	}

	var out []Pattern
	for i := 2; i < len(bars); i++ {
		a, c := bars[i-2], bars[i]

		if a.High < c.Low {
			if g, open := refineGap(bars, i+1, Bullish, a.High, c.Low); open {
				g.FormedAt = i
				out = append(out, g)
			}
		}
		if a.Low > c.High {
			if g, open := refineGap(bars, i+1, Bearish, c.High, a.Low); open {
				g.FormedAt = i
				out = append(out, g)
			}
		}
	}
	return out
}

// refineGap walks bars from index `from` forward, shrinking the gap by every
// partial fill and reporting open=false once it is fully covered. A bullish
// gap sits below price and fills from the top down; a bearish gap sits above
// price and fills from the bottom up.
func refineGap(bars []market.Bar, from int, dir Direction, lo, hi float64) (Pattern, bool) {
	for j := from; j < len(bars); j++ {
		if dir == Bullish {
			if bars[j].Low <= lo {
				return Pattern{}, false
			}
			if bars[j].Low < hi {
				hi = bars[j].Low
			}
		} else {
			if bars[j].High >= hi {
				return Pattern{}, false
			}
			if bars[j].High > lo {
				lo = bars[j].High
			}
		}
	}

	return Pattern{
		Kind:      FairValueGap,
		Direction: dir,
		Low:       lo,
		High:      hi,
	}, true
}
