package signal

import (
	"math"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/smc"
)

// Confidence weights. They sum to 1.0 so confidence stays in [0, 1]; each
// factor is unit-tested on its own. The source material pins only the
// qualitative shape ("75%+ confidence"), so these are deliberately exposed
// as named constants for empirical tuning through the backtester.
const (
	// confluenceWeight scores how many distinct pattern kinds agree, capped
	// at confluenceKindCap so a fourth kind cannot substitute for recency.
	confluenceWeight  = 0.5
	confluenceKindCap = 3

	// recencyWeight scores how fresh the newest confluent pattern is,
	// decaying linearly to zero at MaxPatternAge.
	recencyWeight = 0.3

	// sessionBiasWeight scores alignment with the session's directional
	// lean. Sessions without a lean score neutralBiasScore.
	sessionBiasWeight = 0.2
	neutralBiasScore  = 0.75
	opposedBiasScore  = 0.25
)

// Quality factor split: risk/reward geometry (tight stop relative to the
// volatility regime) and stop cleanliness (little bar noise beyond the
// boundary that defines the stop).
const (
	geometryWeight    = 0.5
	cleanlinessWeight = 0.5

	// geometryATRSpan is the stop distance, in ATR multiples, at which the
	// geometry score reaches zero.
	geometryATRSpan = 4.0

	// cleanlinessLookback is how many trailing bars are inspected for
	// pokes beyond the stop boundary.
	cleanlinessLookback = 10
)

// Config holds the scorer tuning parameters.
type Config struct {
	ATRPeriod         int     // trailing ATR window
	ProximityATRMult  float64 // max zone gap between confluent patterns, in ATRs
	StopBufferATRMult float64 // stop placed this far beyond the pattern boundary
	MinRiskReward     float64 // minimum target-to-stop ratio
	MaxPatternAge     int     // bars before a pattern stops being active
}

// DefaultConfig returns the scorer defaults.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:         market.DefaultATRPeriod,
		ProximityATRMult:  1.0,
		StopBufferATRMult: 0.1,
		MinRiskReward:     3.0,
		MaxPatternAge:     30,
	}
}

// Scorer produces at most one candidate per bar from the active patterns.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer. Zero-valued config fields fall back to
// defaults; invalid values are caught earlier by config validation.
func NewScorer(cfg Config) *Scorer {
	d := DefaultConfig()
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = d.ATRPeriod
	}
	if cfg.ProximityATRMult <= 0 {
		cfg.ProximityATRMult = d.ProximityATRMult
	}
	if cfg.StopBufferATRMult <= 0 {
		cfg.StopBufferATRMult = d.StopBufferATRMult
	}
	if cfg.MinRiskReward <= 0 {
		cfg.MinRiskReward = d.MinRiskReward
	}
	if cfg.MaxPatternAge <= 0 {
		cfg.MaxPatternAge = d.MaxPatternAge
	}
	return &Scorer{cfg: cfg}
}

// Score evaluates the patterns active at bar index idx and returns zero or
// one candidate. A candidate needs at least two distinct pattern kinds
// agreeing on direction with price zones inside the proximity window;
// single-pattern setups never score high enough to emit. The
// emitted candidate always satisfies the session's confidence and quality
// floors and the configured minimum risk/reward.
func (s *Scorer) Score(
	instrument string,
	bars []market.Bar,
	patterns []smc.Pattern,
	idx int,
	sessName session.Name,
	sessParams session.Params,
) *Candidate {
	if idx <= 0 || idx >= len(bars) {
		return nil
	}
	atr := market.ATR(bars, idx, s.cfg.ATRPeriod)
	if atr <= 0 {
		return nil
	}

	active := s.activePatterns(patterns, idx)
	if len(active) < 2 {
		return nil
	}

	bull := s.bestCluster(active, smc.Bullish, atr)
	bear := s.bestCluster(active, smc.Bearish, atr)

	cand := s.buildCandidate(instrument, bars, bull, idx, atr, sessName, sessParams)
	if bearCand := s.buildCandidate(instrument, bars, bear, idx, atr, sessName, sessParams); bearCand != nil {
		if cand == nil || bearCand.Confidence > cand.Confidence {
			cand = bearCand
		}
	}
	return cand
}

func (s *Scorer) activePatterns(patterns []smc.Pattern, idx int) []smc.Pattern {
	var active []smc.Pattern
	for _, p := range patterns {
		age := idx - p.FormedAt
		if age >= 0 && age <= s.cfg.MaxPatternAge {
			active = append(active, p)
		}
	}
	return active
}

// bestCluster picks the confluent cluster for one direction: for each anchor
// pattern, gather all same-direction patterns whose zones are within the
// proximity window of the anchor's zone, then keep the cluster with the most
// distinct kinds (ties broken by most recent formation). Returns nil when no
// cluster reaches two distinct kinds.
func (s *Scorer) bestCluster(patterns []smc.Pattern, dir smc.Direction, atr float64) []smc.Pattern {
	proximity := s.cfg.ProximityATRMult * atr

	var best []smc.Pattern
	bestKinds, bestRecent := 0, -1

	for _, anchor := range patterns {
		if anchor.Direction != dir {
			continue
		}
		var cluster []smc.Pattern
		for _, p := range patterns {
			if p.Direction == dir && zoneGap(anchor, p) <= proximity {
				cluster = append(cluster, p)
			}
		}
		kinds := distinctKinds(cluster)
		if kinds < 2 {
			continue
		}
		recent := newestFormation(cluster)
		if kinds > bestKinds || (kinds == bestKinds && recent > bestRecent) {
			best, bestKinds, bestRecent = cluster, kinds, recent
		}
	}
	return best
}

func (s *Scorer) buildCandidate(
	instrument string,
	bars []market.Bar,
	cluster []smc.Pattern,
	idx int,
	atr float64,
	sessName session.Name,
	sess session.Params,
) *Candidate {
	if cluster == nil {
		return nil
	}
	dir := cluster[0].Direction
	entry := bars[idx].Close
	buffer := s.cfg.StopBufferATRMult * atr

	// Stop goes beyond the most conservative confluent boundary: the lowest
	// low of the cluster for longs, the highest high for shorts.
	var stop, target float64
	if dir == smc.Bullish {
		stop = clusterLow(cluster) - buffer
		if stop >= entry {
			return nil
		}
		target = entry + (entry-stop)*s.cfg.MinRiskReward
	} else {
		stop = clusterHigh(cluster) + buffer
		if stop <= entry {
			return nil
		}
		target = entry - (stop-entry)*s.cfg.MinRiskReward
	}

	rr := math.Abs(target-entry) / math.Abs(entry-stop)
	if rr < s.cfg.MinRiskReward-1e-9 {
		return nil
	}

	confidence := s.confidence(cluster, idx, dir, sess)
	quality := s.quality(bars, idx, dir, stop, atr)

	if confidence < sess.MinConfidence || quality < sess.MinQuality {
		return nil
	}

	return &Candidate{
		Instrument:  instrument,
		Direction:   dir,
		Confidence:  confidence,
		Quality:     quality,
		EntryPrice:  entry,
		StopPrice:   stop,
		TargetPrice: target,
		RiskReward:  rr,
		BarIndex:    idx,
		Timestamp:   bars[idx].Timestamp,
		Session:     sessName,
		Patterns:    cluster,
	}
}

// confidence is the weighted sum of confluence breadth, recency and session
// bias alignment. Always in [0, 1].
func (s *Scorer) confidence(cluster []smc.Pattern, idx int, dir smc.Direction, sess session.Params) float64 {
	kinds := distinctKinds(cluster)
	if kinds > confluenceKindCap {
		kinds = confluenceKindCap
	}
	confluence := float64(kinds) / float64(confluenceKindCap)

	age := idx - newestFormation(cluster)
	recency := 1.0 - float64(age)/float64(s.cfg.MaxPatternAge)
	if recency < 0 {
		recency = 0
	}

	bias := neutralBiasScore
	switch sess.Bias {
	case dir:
		bias = 1.0
	case dir.Opposite():
		bias = opposedBiasScore
	}

	return confluenceWeight*confluence + recencyWeight*recency + sessionBiasWeight*bias
}

// quality scores the trade's geometry: a stop that is tight relative to the
// volatility regime and a boundary that recent bars have not been poking
// through both score higher. Always in [0, 1].
func (s *Scorer) quality(bars []market.Bar, idx int, dir smc.Direction, stop float64, atr float64) float64 {
	stopDist := math.Abs(bars[idx].Close - stop)
	geometry := 1.0 - stopDist/(geometryATRSpan*atr)
	if geometry < 0 {
		geometry = 0
	}

	lookback := cleanlinessLookback
	if lookback > idx {
		lookback = idx
	}
	pokes := 0
	for i := idx - lookback; i < idx; i++ {
		if dir == smc.Bullish && bars[i].Low < stop {
			pokes++
		}
		if dir == smc.Bearish && bars[i].High > stop {
			pokes++
		}
	}
	cleanliness := 1.0
	if lookback > 0 {
		cleanliness = 1.0 - float64(pokes)/float64(lookback)
	}

	return geometryWeight*geometry + cleanlinessWeight*cleanliness
}

// zoneGap is the price distance between two pattern zones; zero when they
// overlap.
func zoneGap(a, b smc.Pattern) float64 {
	lo := math.Max(a.Low, b.Low)
	hi := math.Min(a.High, b.High)
	if lo <= hi {
		return 0
	}
	return lo - hi
}

func distinctKinds(cluster []smc.Pattern) int {
	seen := make(map[smc.Kind]bool, len(cluster))
	for _, p := range cluster {
		seen[p.Kind] = true
	}
	return len(seen)
}

func newestFormation(cluster []smc.Pattern) int {
	newest := -1
	for _, p := range cluster {
		if p.FormedAt > newest {
			newest = p.FormedAt
		}
	}
	return newest
}

func clusterLow(cluster []smc.Pattern) float64 {
	low := cluster[0].Low
	for _, p := range cluster[1:] {
		if p.Low < low {
			low = p.Low
		}
	}
	return low
}

func clusterHigh(cluster []smc.Pattern) float64 {
	high := cluster[0].High
	for _, p := range cluster[1:] {
		if p.High > high {
			high = p.High
		}
	}
	return high
}
