package signal

import "math"

// Sizer converts a scored candidate into a position size for a given account
// equity. It is stateless; the caller supplies current equity so backtest and
// live paths share the same arithmetic.
type Sizer struct {
	lotSize float64
}

// NewSizer creates a sizer for an instrument whose minimum tradable unit is
// lotSize. A non-positive lot size falls back to 1e-8, fine enough for any
// crypto quote precision.
func NewSizer(lotSize float64) *Sizer {
	if lotSize <= 0 {
		lotSize = 1e-8
	}
	return &Sizer{lotSize: lotSize}
}

// Size returns the position size that risks riskPerTradePct percent of equity
// between the candidate's entry and stop, rounded down to a whole number of
// lots. Returns 0 when the stop distance is degenerate or the risk budget is
// smaller than one lot.
func (sz *Sizer) Size(equity, riskPerTradePct, entry, stop float64) float64 {
	dist := math.Abs(entry - stop)
	if dist <= 0 || equity <= 0 || riskPerTradePct <= 0 {
		return 0
	}
	riskBudget := equity * riskPerTradePct / 100.0
	raw := riskBudget / dist
	lots := math.Floor(raw / sz.lotSize)
	return lots * sz.lotSize
}

// Apply sizes the candidate in place using the session's risk parameters.
func (sz *Sizer) Apply(c *Candidate, equity, riskPerTradePct float64) {
	if c == nil {
		return
	}
	c.PositionSize = sz.Size(equity, riskPerTradePct, c.EntryPrice, c.StopPrice)
}
