// Package feed provides bar sources for the live scanner. Replay serves
// recorded history as if it were arriving live, for dry runs and demos;
// an exchange-backed source plugs in behind the same interface.
package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"smc-signal-engine/internal/market"
)

// Replay serves pre-loaded bars in timestamp order, a bounded batch per
// fetch, so the scanner consumes them the way it would a live feed.
type Replay struct {
	mu    sync.Mutex
	bars  map[string][]market.Bar
	batch int
}

// NewReplay wraps already-loaded bar histories. batch caps how many bars a
// single Fetch returns; zero or negative means 100.
func NewReplay(bars map[string][]market.Bar, batch int) *Replay {
	if batch <= 0 {
		batch = 100
	}
	return &Replay{bars: bars, batch: batch}
}

// NewReplayFromDir loads <dir>/<instrument>.csv for every instrument.
func NewReplayFromDir(dir string, instruments []string, batch int) (*Replay, error) {
	bars := make(map[string][]market.Bar, len(instruments))
	for _, instrument := range instruments {
		path := filepath.Join(dir, instrument+".csv")
		loaded, err := market.LoadCSV(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		bars[instrument] = loaded
	}
	return NewReplay(bars, batch), nil
}

// Fetch returns bars strictly after the given timestamp, oldest first,
// capped at the smaller of limit and the replay batch size.
func (r *Replay) Fetch(_ context.Context, instrument string, after time.Time, limit int) ([]market.Bar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, ok := r.bars[instrument]
	if !ok {
		return nil, fmt.Errorf("no replay data for %s", instrument)
	}

	// History is sorted; skip to the first bar past the cursor.
	start := 0
	for start < len(history) && !history[start].Timestamp.After(after) {
		start++
	}

	n := r.batch
	if limit > 0 && limit < n {
		n = limit
	}
	if rest := len(history) - start; rest < n {
		n = rest
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([]market.Bar, n)
	copy(out, history[start:start+n])
	return out, nil
}
