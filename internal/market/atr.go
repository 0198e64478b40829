package market

import "math"

// DefaultATRPeriod is the trailing window used for the local average true
// range that detectors and the scorer scale their thresholds by.
const DefaultATRPeriod = 14

// ATR calculates the average true range over the last period bars ending at
// (and including) index end. Returns 0 when there is not enough history for a
// full window, which callers treat as "no volatility estimate".
func ATR(bars []Bar, end, period int) float64 {
	if period <= 0 || end >= len(bars) || end-period < 0 {
		return 0
	}

	trSum := 0.0
	for i := end - period + 1; i <= end; i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close

		tr := math.Max(high-low, math.Max(
			math.Abs(high-prevClose),
			math.Abs(low-prevClose),
		))
		trSum += tr
	}

	return trSum / float64(period)
}
