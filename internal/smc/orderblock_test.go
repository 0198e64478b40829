package smc

import (
	"testing"

	"smc-signal-engine/internal/market"
)

// impulseFixture returns a quiet base, a bearish candle at index 4 and a
// three-bar bullish impulse after it.
func impulseFixture() []market.Bar {
	bars := quietBars(4)
	bars = append(bars,
		mkBar(4, 100.4, 100.8, 99.8, 100.0), // opposing candle: the block
		mkBar(5, 100, 101.8, 99.9, 101.5),
		mkBar(6, 101.5, 103.2, 101.2, 103),
		mkBar(7, 103, 104.8, 102.8, 104.5),
		mkBar(8, 104.5, 105, 104, 104.4),
		mkBar(9, 104.4, 104.9, 103.9, 104.3),
	)
	return bars
}

func TestBullishOrderBlock(t *testing.T) {
	blocks := DetectOrderBlocks(impulseFixture(), testCfg())

	if len(blocks) != 1 {
		t.Fatalf("expected one order block, got %d", len(blocks))
	}
	ob := blocks[0]
	if ob.Kind != OrderBlock || ob.Direction != Bullish {
		t.Errorf("expected bullish order block, got %s %s", ob.Direction, ob.Kind)
	}
	if ob.FormedAt != 4 {
		t.Errorf("block should be the candle before the impulse (index 4), got %d", ob.FormedAt)
	}
	if ob.Low != 99.8 || ob.High != 100.8 {
		t.Errorf("block zone must be the opposing candle's range, got (%g, %g)", ob.Low, ob.High)
	}
}

func TestOrderBlockRequiresImpulseRange(t *testing.T) {
	cfg := testCfg()
	cfg.ImpulseRangeMult = 10 // no run in the fixture covers 10x ATR

	if blocks := DetectOrderBlocks(impulseFixture(), cfg); len(blocks) != 0 {
		t.Errorf("weak move must not produce an order block, got %v", blocks)
	}
}

func TestOrderBlockRequiresOpposingCandle(t *testing.T) {
	bars := impulseFixture()
	// Make the would-be block bullish: same direction as the impulse.
	bars[4] = mkBar(4, 99.8, 100.8, 99.7, 100.4)

	if blocks := DetectOrderBlocks(bars, testCfg()); len(blocks) != 0 {
		t.Errorf("same-direction candle must not qualify, got %v", blocks)
	}
}

func TestBreakerBlockFlipsDirection(t *testing.T) {
	bars := impulseFixture()
	// Price later collapses through the bullish block's lower edge.
	bars = append(bars,
		mkBar(10, 104.3, 104.5, 101, 101.2),
		mkBar(11, 101.2, 101.5, 99.2, 99.5),
	)

	blocks := DetectOrderBlocks(bars, testCfg())
	breakers := DetectBreakerBlocks(bars, blocks)

	if len(breakers) != 1 {
		t.Fatalf("expected one breaker, got %d", len(breakers))
	}
	br := breakers[0]
	if br.Kind != BreakerBlock || br.Direction != Bearish {
		t.Errorf("failed bullish block must become a bearish breaker, got %s %s", br.Direction, br.Kind)
	}
	if br.FormedAt != 11 {
		t.Errorf("breaker forms at the violating close (index 11), got %d", br.FormedAt)
	}
	if br.Low != 99.8 || br.High != 100.8 {
		t.Errorf("breaker keeps the original zone, got (%g, %g)", br.Low, br.High)
	}
}

func TestDetectReclassifiesViolatedBlocks(t *testing.T) {
	bars := impulseFixture()
	bars = append(bars,
		mkBar(10, 104.3, 104.5, 101, 101.2),
		mkBar(11, 101.2, 101.5, 99.2, 99.5),
	)

	patterns := Detect(bars, nil, testCfg())

	var obs, brs int
	for _, p := range patterns {
		switch p.Kind {
		case OrderBlock:
			obs++
		case BreakerBlock:
			brs++
		}
	}
	if obs != 0 {
		t.Errorf("violated order block must not be reported as an order block (got %d)", obs)
	}
	if brs != 1 {
		t.Errorf("expected one breaker block, got %d", brs)
	}

	// Combined output must be ordered by formation index.
	for i := 1; i < len(patterns); i++ {
		if patterns[i-1].FormedAt > patterns[i].FormedAt {
			t.Errorf("patterns out of order at %d: %d after %d", i, patterns[i].FormedAt, patterns[i-1].FormedAt)
		}
	}
}
