// Package database persists emitted signals and backtest runs in PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// New opens a connection pool and verifies connectivity.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("postgres connected")
	return &DB{Pool: pool, log: log}, nil
}

// Close shuts down the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info().Msg("database connection closed")
	}
}

// Migrate creates the schema when missing. Statements are idempotent; there
// is no versioned migration history at this scale.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			confidence DECIMAL(5, 4) NOT NULL,
			quality DECIMAL(5, 4) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_price DECIMAL(20, 8) NOT NULL,
			target_price DECIMAL(20, 8) NOT NULL,
			risk_reward DECIMAL(10, 4) NOT NULL,
			position_size DECIMAL(20, 8) NOT NULL,
			session VARCHAR(24) NOT NULL,
			pattern_kinds TEXT[] NOT NULL,
			bar_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_instrument_time
			ON signals (instrument, bar_time DESC)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id UUID PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			starting_equity DECIMAL(20, 8) NOT NULL,
			final_equity DECIMAL(20, 8) NOT NULL,
			total_trades INT NOT NULL,
			wins INT NOT NULL,
			losses INT NOT NULL,
			win_rate DECIMAL(5, 4) NOT NULL,
			profit_factor DECIMAL(12, 4),
			max_drawdown DECIMAL(20, 8) NOT NULL,
			roi_pct DECIMAL(10, 4) NOT NULL,
			summary JSONB NOT NULL,
			equity_curve JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id UUID PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			direction VARCHAR(8) NOT NULL,
			session VARCHAR(24) NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			stop_price DECIMAL(20, 8) NOT NULL,
			target_price DECIMAL(20, 8) NOT NULL,
			position_size DECIMAL(20, 8) NOT NULL,
			commission DECIMAL(20, 8) NOT NULL,
			pnl DECIMAL(20, 8) NOT NULL,
			reason VARCHAR(8) NOT NULL,
			pattern_kinds TEXT[] NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run
			ON backtest_trades (run_id)`,
	}

	for i, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.log.Info().Msg("database schema up to date")
	return nil
}
