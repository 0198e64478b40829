package session

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2024, 3, 1, hour, 30, 0, 0, time.UTC)
}

func TestResolvePrimarySessions(t *testing.T) {
	tb := Default()

	cases := []struct {
		hour int
		want Name
	}{
		{0, Tokyo},
		{5, Tokyo},
		{8, London},   // Tokyo/London handoff: London listed first wins at 08
		{12, London},
		{13, LondonNYOverlap}, // overlap beats both constituents
		{16, LondonNYOverlap},
		{17, NewYork},
		{21, NewYork},
		{22, DeadZone},
		{23, DeadZone},
	}

	for _, c := range cases {
		got, _ := tb.Resolve(at(c.hour))
		if got != c.want {
			t.Errorf("hour %02d: expected %s, got %s", c.hour, c.want, got)
		}
	}
}

func TestResolveAlwaysSingleSession(t *testing.T) {
	tb := Default()
	for hour := 0; hour < 24; hour++ {
		name, params := tb.Resolve(at(hour))
		if name == "" {
			t.Errorf("hour %02d resolved to empty session", hour)
		}
		if params.MinConfidence <= 0 || params.MinConfidence > 1 {
			t.Errorf("hour %02d (%s): MinConfidence %f out of range", hour, name, params.MinConfidence)
		}
		if params.RiskPerTradePct <= 0 {
			t.Errorf("hour %02d (%s): non-positive risk pct", hour, name)
		}
	}
}

func TestResolveNonUTCInput(t *testing.T) {
	tb := Default()
	loc := time.FixedZone("UTC+9", 9*3600)

	// 23:00 in UTC+9 is 14:00 UTC: London/NY overlap.
	name, _ := tb.Resolve(time.Date(2024, 3, 1, 23, 0, 0, 0, loc))
	if name != LondonNYOverlap {
		t.Errorf("expected overlap for 14:00 UTC, got %s", name)
	}
}

func TestNewTableValidation(t *testing.T) {
	if _, err := NewTable([]Window{{Name: "X", Start: 9, End: 9}}, Params{}); err == nil {
		t.Error("empty hour window must be rejected")
	}
	if _, err := NewTable([]Window{{Name: "X", Start: -1, End: 5}}, Params{}); err == nil {
		t.Error("negative start hour must be rejected")
	}
	if _, err := NewTable([]Window{{Start: 1, End: 5}}, Params{}); err == nil {
		t.Error("unnamed window must be rejected")
	}
}

func TestMidnightWrapWindow(t *testing.T) {
	tb, err := NewTable([]Window{
		{Name: "SYDNEY", Start: 21, End: 6, Param: Params{
			MinConfidence: 0.8, MinQuality: 0.7, MaxTradesPerDay: 2, RiskPerTradePct: 0.4,
		}},
	}, Params{MinConfidence: 0.9, MinQuality: 0.8, MaxTradesPerDay: 1, RiskPerTradePct: 0.2})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if name, _ := tb.Resolve(at(23)); name != "SYDNEY" {
		t.Errorf("23:00 should fall in the wrapping window, got %s", name)
	}
	if name, _ := tb.Resolve(at(3)); name != "SYDNEY" {
		t.Errorf("03:00 should fall in the wrapping window, got %s", name)
	}
	if name, _ := tb.Resolve(at(12)); name != DeadZone {
		t.Errorf("12:00 should be dead zone, got %s", name)
	}
}
