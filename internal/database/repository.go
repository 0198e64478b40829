package database

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/smc"
)

// Repository provides data access for signals and backtest runs.
type Repository struct {
	db *DB
}

// NewRepository wraps a connected DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck pings the database.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SaveSignal persists one emitted candidate.
func (r *Repository) SaveSignal(ctx context.Context, c *signal.Candidate) error {
	kinds := kindStrings(c.Kinds())

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO signals (
			id, instrument, direction, confidence, quality,
			entry_price, stop_price, target_price, risk_reward, position_size,
			session, pattern_kinds, bar_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Instrument, string(c.Direction), c.Confidence, c.Quality,
		c.EntryPrice, c.StopPrice, c.TargetPrice, c.RiskReward, c.PositionSize,
		string(c.Session), kinds, c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// SignalRecord is a stored signal row.
type SignalRecord struct {
	ID           string   `json:"id"`
	Instrument   string   `json:"instrument"`
	Direction    string   `json:"direction"`
	Confidence   float64  `json:"confidence"`
	Quality      float64  `json:"quality"`
	EntryPrice   float64  `json:"entry_price"`
	StopPrice    float64  `json:"stop_price"`
	TargetPrice  float64  `json:"target_price"`
	RiskReward   float64  `json:"risk_reward"`
	PositionSize float64  `json:"position_size"`
	Session      string   `json:"session"`
	PatternKinds []string `json:"pattern_kinds"`
	BarTime      string   `json:"bar_time"`
}

// ListSignals returns the most recent signals, newest first. An empty
// instrument matches all.
func (r *Repository) ListSignals(ctx context.Context, instrument string, limit int) ([]SignalRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, instrument, direction, confidence, quality,
			entry_price, stop_price, target_price, risk_reward, position_size,
			session, pattern_kinds, bar_time::text
		FROM signals`
	args := []interface{}{}
	if instrument != "" {
		query += ` WHERE instrument = $1`
		args = append(args, instrument)
	}
	query += fmt.Sprintf(` ORDER BY bar_time DESC LIMIT %d`, limit)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var s SignalRecord
		if err := rows.Scan(
			&s.ID, &s.Instrument, &s.Direction, &s.Confidence, &s.Quality,
			&s.EntryPrice, &s.StopPrice, &s.TargetPrice, &s.RiskReward, &s.PositionSize,
			&s.Session, &s.PatternKinds, &s.BarTime,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveBacktestRun persists a run and its trades in one transaction and
// returns the run id.
func (r *Repository) SaveBacktestRun(ctx context.Context, res *backtest.Result) (string, error) {
	if len(res.Trades) == 0 {
		return "", fmt.Errorf("refusing to persist a run with no trades")
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	curveJSON, err := json.Marshal(res.EquityCurve)
	if err != nil {
		return "", fmt.Errorf("marshal equity curve: %w", err)
	}

	// DECIMAL has no infinity; an all-winning run stores NULL.
	var profitFactor interface{}
	if !math.IsInf(res.Summary.ProfitFactor, 0) {
		profitFactor = res.Summary.ProfitFactor
	}

	runID := uuid.NewString()
	first, last := res.Trades[0], res.Trades[len(res.Trades)-1]

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_runs (
			id, instrument, start_time, end_time,
			starting_equity, final_equity, total_trades, wins, losses,
			win_rate, profit_factor, max_drawdown, roi_pct, summary, equity_curve
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		runID, res.Instrument, first.EntryTime, last.ExitTime,
		res.StartingEquity, res.FinalEquity,
		res.Summary.TotalTrades, res.Summary.Wins, res.Summary.Losses,
		res.Summary.WinRate, profitFactor, res.Summary.MaxDrawdown, res.Summary.ROIPct,
		summaryJSON, curveJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert backtest run: %w", err)
	}

	for i := range res.Trades {
		t := &res.Trades[i]
		kinds := kindStrings(t.PatternKinds)
		_, err = tx.Exec(ctx, `
			INSERT INTO backtest_trades (
				id, run_id, direction, session, entry_time, exit_time,
				entry_price, exit_price, stop_price, target_price,
				position_size, commission, pnl, reason, pattern_kinds
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			t.ID, runID, string(t.Direction), string(t.Session), t.EntryTime, t.ExitTime,
			t.EntryPrice, t.ExitPrice, t.StopPrice, t.TargetPrice,
			t.PositionSize, t.Commission, t.PnL, string(t.Reason), kinds,
		)
		if err != nil {
			return "", fmt.Errorf("insert backtest trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit backtest run: %w", err)
	}
	return runID, nil
}

// RunRecord is a stored backtest run header.
type RunRecord struct {
	ID             string          `json:"id"`
	Instrument     string          `json:"instrument"`
	StartingEquity float64         `json:"starting_equity"`
	FinalEquity    float64         `json:"final_equity"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        float64         `json:"win_rate"`
	ROIPct         float64         `json:"roi_pct"`
	Summary        json.RawMessage `json:"summary"`
	CreatedAt      string          `json:"created_at"`
}

// ListBacktestRuns returns stored run headers, newest first.
func (r *Repository) ListBacktestRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT id, instrument, starting_equity, final_equity,
			total_trades, win_rate, roi_pct, summary, created_at::text
		FROM backtest_runs ORDER BY created_at DESC LIMIT %d`, limit))
	if err != nil {
		return nil, fmt.Errorf("query backtest runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.Instrument, &rec.StartingEquity, &rec.FinalEquity,
			&rec.TotalTrades, &rec.WinRate, &rec.ROIPct, &rec.Summary, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan backtest run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// kindStrings converts pattern kinds for TEXT[] columns.
func kindStrings(kinds []smc.Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
