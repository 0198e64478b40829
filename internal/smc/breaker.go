package smc

import "smc-signal-engine/internal/market"

// DetectBreakerBlocks reclassifies order blocks whose zone later failed. When
// price closes beyond a block's far edge (below a bullish block, above a
// bearish one) the block has been run through: it marks a structural failure
// point and is expected to act as the opposite barrier on retest, so its
// direction flips. The breaker keeps the original zone; it forms at the bar
// whose close violated it.
func DetectBreakerBlocks(bars []market.Bar, blocks []Pattern) []Pattern {
	var out []Pattern
	for _, ob := range blocks {
		if ob.Kind != OrderBlock {
			continue
		}
		for j := ob.FormedAt + 1; j < len(bars); j++ {
			if !closesBeyondFarEdge(bars[j], ob) {
				continue
			}
			out = append(out, Pattern{
				Kind:      BreakerBlock,
				Direction: ob.Direction.Opposite(),
				FormedAt:  j,
				Low:       ob.Low,
				High:      ob.High,
			})
			break
		}
	}
	return out
}

func closesBeyondFarEdge(b market.Bar, ob Pattern) bool {
	if ob.Direction == Bullish {
		return b.Close < ob.Low
	}
	return b.Close > ob.High
}
