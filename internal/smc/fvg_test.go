package smc

import (
	"testing"

	"smc-signal-engine/internal/market"
)

func TestBullishFVG(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 98, 100, 97, 99),
		mkBar(1, 99, 105, 98, 104),
		mkBar(2, 107, 109, 108, 108.5),
	}

	gaps := DetectFairValueGaps(bars)

	if len(gaps) != 1 {
		t.Fatalf("expected exactly one gap, got %d", len(gaps))
	}
	g := gaps[0]
	if g.Kind != FairValueGap || g.Direction != Bullish {
		t.Errorf("expected bullish fair value gap, got %s %s", g.Direction, g.Kind)
	}
	if g.Low != 100 || g.High != 108 {
		t.Errorf("expected gap range (100, 108), got (%g, %g)", g.Low, g.High)
	}
	if g.FormedAt != 2 {
		t.Errorf("gap should form at index 2, got %d", g.FormedAt)
	}
}

func TestBearishFVG(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 110, 112, 108, 109),
		mkBar(1, 108, 109, 103, 104),
		mkBar(2, 103, 105, 101, 102),
	}

	gaps := DetectFairValueGaps(bars)

	if len(gaps) != 1 {
		t.Fatalf("expected exactly one gap, got %d", len(gaps))
	}
	g := gaps[0]
	if g.Direction != Bearish {
		t.Errorf("expected bearish gap, got %s", g.Direction)
	}
	// A.Low=108, C.High=105: untraded range between them.
	if g.Low != 105 || g.High != 108 {
		t.Errorf("expected gap range (105, 108), got (%g, %g)", g.Low, g.High)
	}
}

func TestFVGPartialFillShrinksZone(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 98, 100, 97, 99),
		mkBar(1, 99, 105, 98, 104),
		mkBar(2, 107, 109, 108, 108.5),
		// Price dips back into the gap but does not cover it.
		mkBar(3, 108, 108.5, 104, 106),
	}

	gaps := DetectFairValueGaps(bars)

	if len(gaps) != 1 {
		t.Fatalf("expected one active gap, got %d", len(gaps))
	}
	if gaps[0].Low != 100 || gaps[0].High != 104 {
		t.Errorf("partial fill should shrink zone to (100, 104), got (%g, %g)", gaps[0].Low, gaps[0].High)
	}
}

func TestFVGFullFillDeactivates(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 98, 100, 97, 99),
		mkBar(1, 99, 105, 98, 104),
		mkBar(2, 107, 109, 108, 108.5),
		mkBar(3, 108, 108.5, 99.5, 101),
	}

	if gaps := DetectFairValueGaps(bars); len(gaps) != 0 {
		t.Errorf("fully covered gap must be dropped, got %v", gaps)
	}
}

func TestFVGNeedsThreeBars(t *testing.T) {
	bars := []market.Bar{
		mkBar(0, 98, 100, 97, 99),
		mkBar(1, 99, 105, 98, 104),
	}

	if gaps := DetectFairValueGaps(bars); gaps != nil {
		t.Errorf("expected no gaps for two bars, got %v", gaps)
	}
}
