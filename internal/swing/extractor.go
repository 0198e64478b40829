// Package swing extracts confirmed local price extrema from a bar sequence.
// Every smart-money pattern detector keys off these swing points.
package swing

import (
	"time"

	"smc-signal-engine/internal/market"
)

// Kind distinguishes swing highs from swing lows.
type Kind string

const (
	High Kind = "high"
	Low  Kind = "low"
)

// Point is a bar confirmed as a local extremum over a symmetric window. It
// references its bar by index into the sequence it was extracted from and is
// recomputed per analysis window, never persisted on its own.
type Point struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Kind      Kind      `json:"kind"`
}

// DefaultWindow is the default symmetric lookback/lookahead size.
const DefaultWindow = 3

// Extract returns every confirmed swing point in bars using a symmetric
// window of w bars on each side. A swing high at index i requires bars[i].High
// strictly greater than every high within w bars on both sides; swing lows
// are the mirror. Bars within w of either end lack full context and are never
// confirmed, a deliberate conservative bias against truncated windows.
//
// Output is ordered by index. Consecutive same-kind points are valid and
// represent developing structure; no high/low alternation is enforced.
// Pure and deterministic for fixed input and w.
func Extract(bars []market.Bar, w int) []Point {
	if w <= 0 {
		w = DefaultWindow
	}
	if len(bars) < 2*w+1 {
		return nil
	}

	var points []Point
	for i := w; i <= len(bars)-1-w; i++ {
		if isSwingHigh(bars, i, w) {
			points = append(points, Point{
				Index:     i,
				Timestamp: bars[i].Timestamp,
				Price:     bars[i].High,
				Kind:      High,
			})
		}
		if isSwingLow(bars, i, w) {
			points = append(points, Point{
				Index:     i,
				Timestamp: bars[i].Timestamp,
				Price:     bars[i].Low,
				Kind:      Low,
			})
		}
	}
	return points
}

func isSwingHigh(bars []market.Bar, i, w int) bool {
	for j := i - w; j <= i+w; j++ {
		if j == i {
			continue
		}
		if bars[j].High >= bars[i].High {
			return false
		}
	}
	return true
}

func isSwingLow(bars []market.Bar, i, w int) bool {
	for j := i - w; j <= i+w; j++ {
		if j == i {
			continue
		}
		if bars[j].Low <= bars[i].Low {
			return false
		}
	}
	return true
}
