// Package signal fuses detected patterns and session context into scored,
// risk-sized trade candidates. Scoring is a pure function over its inputs;
// the caller decides whether to notify, persist or simulate.
package signal

import (
	"time"

	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/smc"
)

// Candidate is a fully specified trade setup: one or more confluent patterns
// agreeing on direction, filtered through the active session's thresholds,
// with concrete entry, stop and target levels.
type Candidate struct {
	ID         string        `json:"id,omitempty"`
	Instrument string        `json:"instrument"`
	Direction  smc.Direction `json:"direction"`

	Confidence float64 `json:"confidence"` // [0, 1]
	Quality    float64 `json:"quality"`    // [0, 1]

	EntryPrice  float64 `json:"entry_price"`
	StopPrice   float64 `json:"stop_price"`
	TargetPrice float64 `json:"target_price"`
	RiskReward  float64 `json:"risk_reward"`

	// PositionSize is filled in by the Sizer; zero until then.
	PositionSize float64 `json:"position_size,omitempty"`

	BarIndex  int          `json:"bar_index"`
	Timestamp time.Time    `json:"timestamp"`
	Session   session.Name `json:"session"`

	// Patterns is the confluent cluster the candidate was built from.
	Patterns []smc.Pattern `json:"patterns"`
}

// Kinds returns the distinct pattern kinds in the candidate's cluster.
func (c *Candidate) Kinds() []smc.Kind {
	seen := make(map[smc.Kind]bool, len(c.Patterns))
	var kinds []smc.Kind
	for _, p := range c.Patterns {
		if !seen[p.Kind] {
			seen[p.Kind] = true
			kinds = append(kinds, p.Kind)
		}
	}
	return kinds
}
