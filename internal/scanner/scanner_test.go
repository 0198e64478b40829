package scanner

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/smc"
)

var testStart = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

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

// sweepLowBars ends on a bar where a liquidity sweep, an order block and a
// fair value gap are all confluent on the bullish side.
func sweepLowBars() []market.Bar {
	return []market.Bar{
		mkBar(0, 100, 100.5, 99.5, 100.1),
		mkBar(1, 100, 100.5, 99.5, 100.1),
		mkBar(2, 100, 100.5, 99.5, 100.1),
		mkBar(3, 100.1, 100.3, 98.8, 99.0),
		mkBar(4, 99.0, 99.2, 97.8, 98.0),
		mkBar(5, 98.0, 98.2, 97.0, 97.4),
		mkBar(6, 97.4, 98.4, 97.2, 98.2),
		mkBar(7, 98.2, 98.6, 97.5, 97.8),
		mkBar(8, 97.8, 97.9, 96.4, 96.7),
		mkBar(9, 96.7, 97.9, 96.5, 97.8),
		mkBar(10, 97.8, 98.6, 97.6, 98.5),
		mkBar(11, 98.5, 99.3, 98.3, 99.2),
	}
}

func testConfig() Config {
	return Config{
		Instruments:   []string{"EURUSD"},
		PollInterval:  time.Minute,
		HistoryBars:   100,
		AccountEquity: 10_000,
		LotSize:       1,
		SwingWindow:   2,
		Detector: smc.Config{
			ATRPeriod:         3,
			SweepNoiseMult:    0.15,
			SweepMaxLookahead: 20,
			ImpulseBars:       3,
			ImpulseRangeMult:  2.0,
		},
		Scorer: signal.Config{
			ATRPeriod:         3,
			ProximityATRMult:  1.0,
			StopBufferATRMult: 0.1,
			MinRiskReward:     3.0,
			MaxPatternAge:     8,
		},
	}
}

func allDayTable(t *testing.T, maxTradesPerDay int) *session.Table {
	t.Helper()
	table, err := session.NewTable([]session.Window{{
		Name: session.London, Start: 0, End: 24,
		Param: session.Params{
			MinConfidence:   0.75,
			MinQuality:      0.65,
			MaxTradesPerDay: maxTradesPerDay,
			RiskPerTradePct: 0.75,
		},
	}}, session.Params{MinConfidence: 0.85, MinQuality: 0.75, MaxTradesPerDay: 1, RiskPerTradePct: 0.3})
	if err != nil {
		t.Fatalf("session table: %v", err)
	}
	return table
}

type fakeSource struct {
	batches [][]market.Bar
	err     error
}

func (f *fakeSource) Fetch(_ context.Context, _ string, _ time.Time, _ int) ([]market.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

type fakeNotifier struct {
	signals []*signal.Candidate
}

func (f *fakeNotifier) NotifySignal(_ context.Context, c *signal.Candidate) error {
	f.signals = append(f.signals, c)
	return nil
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) MarkSeen(_ context.Context, instrument, direction string, barTime time.Time) bool {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := instrument + direction + barTime.UTC().Format(time.RFC3339)
	was := f.seen[key]
	f.seen[key] = true
	return was
}

func TestEvaluateEmitsSignal(t *testing.T) {
	s := New(testConfig(), allDayTable(t, 4), &fakeSource{}, nil, nil, nil, nil, zerolog.Nop())

	cand := s.Evaluate(context.Background(), "EURUSD", sweepLowBars())
	if cand == nil {
		t.Fatal("expected a candidate on the confluent bar")
	}
	if cand.ID == "" {
		t.Error("candidate id must be assigned")
	}
	if cand.Direction != smc.Bullish {
		t.Errorf("direction = %s, want bullish", cand.Direction)
	}
	if cand.Confidence < 0.75 || cand.Quality < 0.65 {
		t.Errorf("scores conf=%v qual=%v below the session floors", cand.Confidence, cand.Quality)
	}

	dist := cand.EntryPrice - cand.StopPrice
	want := math.Floor(10_000 * 0.75 / 100 / dist)
	if cand.PositionSize != want {
		t.Errorf("position size = %v, want %v", cand.PositionSize, want)
	}
}

func TestEvaluateDedupSuppressesRepeat(t *testing.T) {
	dedup := &fakeDedup{}
	s := New(testConfig(), allDayTable(t, 4), &fakeSource{}, nil, dedup, nil, nil, zerolog.Nop())

	if s.Evaluate(context.Background(), "EURUSD", sweepLowBars()) == nil {
		t.Fatal("first evaluation should emit")
	}
	if s.Evaluate(context.Background(), "EURUSD", sweepLowBars()) != nil {
		t.Error("second evaluation of the same bar should be deduplicated")
	}
}

func TestEvaluateRespectsDailyCap(t *testing.T) {
	s := New(testConfig(), allDayTable(t, 1), &fakeSource{}, nil, nil, nil, nil, zerolog.Nop())

	if s.Evaluate(context.Background(), "EURUSD", sweepLowBars()) == nil {
		t.Fatal("first evaluation should emit")
	}
	if s.Evaluate(context.Background(), "EURUSD", sweepLowBars()) != nil {
		t.Error("daily cap of one should block a second signal")
	}
}

func TestEvaluateShortHistory(t *testing.T) {
	s := New(testConfig(), allDayTable(t, 4), &fakeSource{}, nil, nil, nil, nil, zerolog.Nop())

	if s.Evaluate(context.Background(), "EURUSD", sweepLowBars()[:3]) != nil {
		t.Error("short history must not produce a candidate")
	}
}

func TestPollAppendsAndNotifies(t *testing.T) {
	src := &fakeSource{batches: [][]market.Bar{sweepLowBars()}}
	notifier := &fakeNotifier{}
	s := New(testConfig(), allDayTable(t, 4), src, notifier, nil, nil, nil, zerolog.Nop())

	store := market.NewStore("EURUSD")
	s.poll(context.Background(), "EURUSD", store, zerolog.Nop())

	if store.Len() != 12 {
		t.Fatalf("store length = %d, want 12", store.Len())
	}
	if len(notifier.signals) != 1 {
		t.Fatalf("notified %d signals, want 1", len(notifier.signals))
	}
	if notifier.signals[0].Instrument != "EURUSD" {
		t.Errorf("instrument = %s", notifier.signals[0].Instrument)
	}
}

func TestPollDropsOutOfOrderBars(t *testing.T) {
	bars := sweepLowBars()[:4]
	src := &fakeSource{batches: [][]market.Bar{{bars[0], bars[2], bars[1], bars[3]}}}
	s := New(testConfig(), allDayTable(t, 4), src, nil, nil, nil, nil, zerolog.Nop())

	store := market.NewStore("EURUSD")
	s.poll(context.Background(), "EURUSD", store, zerolog.Nop())

	if store.Len() != 3 {
		t.Fatalf("store length = %d, want 3 after dropping the stale bar", store.Len())
	}
	last, _ := store.Last()
	if !last.Timestamp.Equal(bars[3].Timestamp) {
		t.Errorf("last bar = %v, want the newest accepted bar", last.Timestamp)
	}
}

func TestPollSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("feed down")}
	s := New(testConfig(), allDayTable(t, 4), src, nil, nil, nil, nil, zerolog.Nop())

	store := market.NewStore("EURUSD")
	s.poll(context.Background(), "EURUSD", store, zerolog.Nop())

	if store.Len() != 0 {
		t.Errorf("store length = %d, want 0 after a fetch failure", store.Len())
	}
}
