// Package scanner runs the live detection loop: poll bars per instrument,
// feed them through the pattern pipeline and fan out any scored signal to
// the bus, the store and the notifier.
package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/smc"
	"smc-signal-engine/internal/swing"
)

// BarSource supplies bars for an instrument. Implementations poll an
// exchange or broker feed; tests supply canned sequences.
type BarSource interface {
	// Fetch returns bars strictly after the given timestamp, oldest first.
	// A zero time requests recent history up to limit bars.
	Fetch(ctx context.Context, instrument string, after time.Time, limit int) ([]market.Bar, error)
}

// Notifier delivers an emitted signal to the operator.
type Notifier interface {
	NotifySignal(ctx context.Context, c *signal.Candidate) error
}

// Deduper suppresses re-emission of a signal already seen for the same
// instrument, direction and bar. cache.SignalCache satisfies this.
type Deduper interface {
	MarkSeen(ctx context.Context, instrument, direction string, barTime time.Time) bool
}

// SignalStore persists emitted signals. database.Repository satisfies this.
type SignalStore interface {
	SaveSignal(ctx context.Context, c *signal.Candidate) error
}

// Config holds the scan loop parameters.
type Config struct {
	Instruments   []string
	PollInterval  time.Duration
	HistoryBars   int
	AccountEquity float64
	LotSize       float64

	SwingWindow int
	Detector    smc.Config
	Scorer      signal.Config
}

// Scanner owns one bar store per instrument and evaluates every appended
// bar. Each instrument runs on its own goroutine; stores are never shared
// across instruments, so per-store access needs no locking.
type Scanner struct {
	cfg      Config
	sessions *session.Table
	scorer   *signal.Scorer
	sizer    *signal.Sizer

	source   BarSource
	notifier Notifier
	dedup    Deduper
	store    SignalStore
	bus      *events.Bus
	log      zerolog.Logger

	mu    sync.Mutex
	daily map[string]int // instrument+day -> emitted signal count
}

// New assembles a scanner. Notifier, deduper, signal store and bus may each
// be nil; the corresponding fan-out step is skipped.
func New(
	cfg Config,
	sessions *session.Table,
	source BarSource,
	notifier Notifier,
	dedup Deduper,
	store SignalStore,
	bus *events.Bus,
	log zerolog.Logger,
) *Scanner {
	if sessions == nil {
		sessions = session.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.HistoryBars < cfg.Detector.MinHistory() {
		cfg.HistoryBars = 500
	}
	if cfg.AccountEquity <= 0 {
		cfg.AccountEquity = 10_000
	}
	return &Scanner{
		cfg:      cfg,
		sessions: sessions,
		scorer:   signal.NewScorer(cfg.Scorer),
		sizer:    signal.NewSizer(cfg.LotSize),
		source:   source,
		notifier: notifier,
		dedup:    dedup,
		store:    store,
		bus:      bus,
		log:      log,
		daily:    make(map[string]int),
	}
}

// Run blocks until ctx is cancelled, scanning every instrument on its own
// goroutine.
func (s *Scanner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, instrument := range s.cfg.Instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			s.runInstrument(ctx, instrument)
		}(instrument)
	}
	wg.Wait()
}

func (s *Scanner) runInstrument(ctx context.Context, instrument string) {
	log := s.log.With().Str("instrument", instrument).Logger()
	store := market.NewStore(instrument)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	// Prime with history before the first tick.
	s.poll(ctx, instrument, store, log)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scanner stopped")
			return
		case <-ticker.C:
			s.poll(ctx, instrument, store, log)
		}
	}
}

// poll fetches new bars, appends them and evaluates each appended bar.
func (s *Scanner) poll(ctx context.Context, instrument string, store *market.Store, log zerolog.Logger) {
	var after time.Time
	if last, ok := store.Last(); ok {
		after = last.Timestamp
	}

	bars, err := s.source.Fetch(ctx, instrument, after, s.cfg.HistoryBars)
	if err != nil {
		log.Warn().Err(err).Msg("bar fetch failed")
		if s.bus != nil {
			s.bus.PublishError("scanner", err)
		}
		return
	}

	for _, bar := range bars {
		if err := store.Append(bar); err != nil {
			// Out-of-order or duplicate data from the feed is dropped, not
			// fatal; the store's ordering guarantee is what downstream
			// detection depends on.
			log.Warn().Err(err).Time("bar", bar.Timestamp).Msg("bar rejected")
			continue
		}
		if cand := s.Evaluate(ctx, instrument, store.Bars()); cand != nil {
			s.emit(ctx, cand, log)
		}
	}

	// Bound memory on long runs; detection never looks further back than
	// the configured history window.
	if store.Len() > 2*s.cfg.HistoryBars {
		store.Trim(s.cfg.HistoryBars)
	}
}

// Evaluate runs the full pipeline over the window and returns the candidate
// for the latest bar, after the per-day cap and deduplication. Exported for
// reuse by replay tooling.
func (s *Scanner) Evaluate(ctx context.Context, instrument string, bars []market.Bar) *signal.Candidate {
	if s.cfg.Detector.CheckHistory(bars) != nil {
		return nil
	}
	idx := len(bars) - 1
	latest := bars[idx]

	sessName, sessParams := s.sessions.Resolve(latest.Timestamp)
	if s.dayCount(instrument, latest.Timestamp) >= sessParams.MaxTradesPerDay {
		return nil
	}

	swings := swing.Extract(bars, s.cfg.SwingWindow)
	patterns := smc.Detect(bars, swings, s.cfg.Detector)
	cand := s.scorer.Score(instrument, bars, patterns, idx, sessName, sessParams)
	if cand == nil {
		return nil
	}
	s.sizer.Apply(cand, s.cfg.AccountEquity, sessParams.RiskPerTradePct)

	if s.dedup != nil && s.dedup.MarkSeen(ctx, instrument, string(cand.Direction), latest.Timestamp) {
		return nil
	}

	cand.ID = uuid.NewString()
	s.bumpDay(instrument, latest.Timestamp)
	return cand
}

// emit fans a signal out to the bus, persistence and the notifier. Failures
// in one sink never block the others.
func (s *Scanner) emit(ctx context.Context, cand *signal.Candidate, log zerolog.Logger) {
	log.Info().
		Str("id", cand.ID).
		Str("direction", string(cand.Direction)).
		Float64("confidence", cand.Confidence).
		Float64("quality", cand.Quality).
		Float64("entry", cand.EntryPrice).
		Float64("stop", cand.StopPrice).
		Float64("target", cand.TargetPrice).
		Str("session", string(cand.Session)).
		Msg("signal generated")

	if s.bus != nil {
		s.bus.PublishSignal(cand.ID, cand.Instrument, string(cand.Direction),
			cand.Confidence, cand.Quality, cand.EntryPrice, cand.StopPrice, cand.TargetPrice)
	}
	if s.store != nil {
		if err := s.store.SaveSignal(ctx, cand); err != nil {
			log.Error().Err(err).Str("id", cand.ID).Msg("signal persist failed")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySignal(ctx, cand); err != nil {
			log.Error().Err(err).Str("id", cand.ID).Msg("signal notification failed")
		}
	}
}

func dayKey(instrument string, t time.Time) string {
	return instrument + ":" + t.UTC().Format("2006-01-02")
}

func (s *Scanner) dayCount(instrument string, t time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daily[dayKey(instrument, t)]
}

func (s *Scanner) bumpDay(instrument string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[dayKey(instrument, t)]++
}
