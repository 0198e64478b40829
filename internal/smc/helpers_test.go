package smc

import (
	"time"

	"smc-signal-engine/internal/market"
)

var testStart = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// mkBar builds a bar i intervals after the fixture start.
func mkBar(i int, o, h, l, c float64) market.Bar {
	return market.Bar{
		Timestamp: testStart.Add(time.Duration(i) * 15 * time.Minute),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    1000,
	}
}

// quietBars returns n low-volatility bars oscillating around 100, used to
// seed ATR history before the structure under test.
func quietBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = mkBar(i, 100, 100.5, 99.5, 100.1)
	}
	return bars
}

// testCfg keeps ATR windows short so fixtures stay small.
func testCfg() Config {
	return Config{
		ATRPeriod:         3,
		SweepNoiseMult:    0.15,
		SweepMaxLookahead: 20,
		ImpulseBars:       3,
		ImpulseRangeMult:  2.0,
	}
}
