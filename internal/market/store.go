package market

import (
	"errors"
	"fmt"
)

// ErrOutOfOrderBar is returned when a bar with a non-increasing timestamp is
// appended. The store is left unchanged.
var ErrOutOfOrderBar = errors.New("bar timestamp is not after last appended bar")

// ErrInsufficientHistory is returned by diagnostics when an analysis window is
// shorter than the minimum lookback it needs. Detectors return empty results
// in that case; the sentinel exists so callers and tests can tell the two
// conditions apart.
var ErrInsufficientHistory = errors.New("not enough bars for requested analysis")

// Store holds the append-only bar sequence for one instrument. It is the
// single owner of bar data; swings and patterns reference bars by index into
// this sequence instead of copying them.
//
// A Store is not safe for concurrent use. The scanner gives each instrument
// its own store and worker, so no locking is needed.
type Store struct {
	instrument string
	bars       []Bar
}

// NewStore creates an empty bar store for the given instrument.
func NewStore(instrument string) *Store {
	return &Store{instrument: instrument}
}

// NewStoreWithBars creates a fully materialized store for backtesting.
// The bars must already be ordered by timestamp; each is validated on append.
func NewStoreWithBars(instrument string, bars []Bar) (*Store, error) {
	s := NewStore(instrument)
	for i, b := range bars {
		if err := s.Append(b); err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
	}
	return s, nil
}

// Instrument returns the instrument this store belongs to.
func (s *Store) Instrument() string {
	return s.instrument
}

// Append adds a bar to the end of the sequence. Bars must arrive in strictly
// increasing timestamp order; duplicates and regressions are rejected with
// ErrOutOfOrderBar and prior state is unchanged.
func (s *Store) Append(b Bar) error {
	if n := len(s.bars); n > 0 && !b.Timestamp.After(s.bars[n-1].Timestamp) {
		return fmt.Errorf("%w: %s at %s, last %s",
			ErrOutOfOrderBar, s.instrument,
			b.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			s.bars[n-1].Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	}
	s.bars = append(s.bars, b)
	return nil
}

// Len returns the number of bars in the store.
func (s *Store) Len() int {
	return len(s.bars)
}

// Bars returns the full bar sequence. Callers must not mutate it.
func (s *Store) Bars() []Bar {
	return s.bars
}

// At returns the bar at the given index.
func (s *Store) At(i int) Bar {
	return s.bars[i]
}

// Trim discards all but the newest keep bars. The long-running scanner uses
// this to bound memory; detection never looks further back than its
// configured history window.
func (s *Store) Trim(keep int) {
	if keep < 0 || len(s.bars) <= keep {
		return
	}
	tail := make([]Bar, keep)
	copy(tail, s.bars[len(s.bars)-keep:])
	s.bars = tail
}

// Last returns the most recent bar, or false when the store is empty.
func (s *Store) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}
