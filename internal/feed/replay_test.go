package feed

import (
	"context"
	"testing"
	"time"

	"smc-signal-engine/internal/market"
)

func replayBars(n int) []market.Bar {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * 15 * time.Minute),
			Open:      100, High: 100.5, Low: 99.5, Close: 100.1,
			Volume: 1000,
		}
	}
	return bars
}

func TestReplayFetchAdvancesCursor(t *testing.T) {
	r := NewReplay(map[string][]market.Bar{"EURUSD": replayBars(10)}, 4)

	first, err := r.Fetch(context.Background(), "EURUSD", time.Time{}, 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("first batch = %d bars, want the batch cap of 4", len(first))
	}

	second, err := r.Fetch(context.Background(), "EURUSD", first[len(first)-1].Timestamp, 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(second) != 4 {
		t.Fatalf("second batch = %d bars, want 4", len(second))
	}
	if !second[0].Timestamp.After(first[len(first)-1].Timestamp) {
		t.Error("second batch must start after the cursor")
	}
}

func TestReplayFetchRespectsLimit(t *testing.T) {
	r := NewReplay(map[string][]market.Bar{"EURUSD": replayBars(10)}, 100)

	bars, err := r.Fetch(context.Background(), "EURUSD", time.Time{}, 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 3 {
		t.Errorf("got %d bars, want the caller limit of 3", len(bars))
	}
}

func TestReplayFetchExhausted(t *testing.T) {
	history := replayBars(2)
	r := NewReplay(map[string][]market.Bar{"EURUSD": history}, 10)

	bars, err := r.Fetch(context.Background(), "EURUSD", history[1].Timestamp, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("exhausted replay returned %d bars", len(bars))
	}
}

func TestReplayUnknownInstrument(t *testing.T) {
	r := NewReplay(map[string][]market.Bar{}, 10)

	if _, err := r.Fetch(context.Background(), "XAUUSD", time.Time{}, 10); err == nil {
		t.Error("unknown instrument must error")
	}
}
