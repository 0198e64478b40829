// Package config loads and validates the engine configuration: a JSON file
// as the base, environment variables as overrides. Validation is fail fast;
// a config that loads is a config the engine can run with.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/scanner"
	"smc-signal-engine/internal/session"
	"smc-signal-engine/internal/signal"
	"smc-signal-engine/internal/smc"
	"smc-signal-engine/internal/swing"
)

type Config struct {
	// Instruments are the symbols the live scanner watches.
	Instruments []string `json:"instruments"`
	// Interval is the bar interval, e.g. "5m" or "15m".
	Interval string `json:"interval"`

	SwingWindow int           `json:"swing_window"`
	Detector    smc.Config    `json:"detector"`
	Scorer      signal.Config `json:"scorer"`

	// Sessions override the built-in forex session table when non-empty.
	Sessions       []session.Window `json:"sessions,omitempty"`
	DeadZoneParams *session.Params  `json:"dead_zone_params,omitempty"`

	Backtest BacktestConfig `json:"backtest"`
	Scanner  ScannerConfig  `json:"scanner"`
	Server   ServerConfig   `json:"server"`
	Auth     AuthConfig     `json:"auth"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Logging  logging.Config `json:"logging"`
}

// BacktestConfig holds the simulation-only parameters; detector, scorer and
// swing settings are shared with the live scanner and configured once.
type BacktestConfig struct {
	StartingEquity float64 `json:"starting_equity"`
	MaxHoldingBars int     `json:"max_holding_bars"`
	CommissionPct  float64 `json:"commission_pct"`
	LotSize        float64 `json:"lot_size"`
}

// EngineConfig assembles the full backtest engine configuration.
func (c *Config) EngineConfig() backtest.Config {
	return backtest.Config{
		StartingEquity: c.Backtest.StartingEquity,
		MaxHoldingBars: c.Backtest.MaxHoldingBars,
		CommissionPct:  c.Backtest.CommissionPct,
		LotSize:        c.Backtest.LotSize,
		SwingWindow:    c.SwingWindow,
		Detector:       c.Detector,
		Scorer:         c.Scorer,
	}
}

// ScannerConfig controls the live scan loop.
type ScannerConfig struct {
	Enabled      bool `json:"enabled"`
	PollInterval int  `json:"poll_interval"` // seconds between polls per instrument
	HistoryBars  int  `json:"history_bars"`  // bars kept per instrument
	// AccountEquity is the balance live position sizing is computed against.
	AccountEquity float64 `json:"account_equity"`
	// DataDir holds per-instrument CSV history for the replay feed.
	DataDir string `json:"data_dir"`
}

// ScanConfig assembles the full live scanner configuration.
func (c *Config) ScanConfig() scanner.Config {
	return scanner.Config{
		Instruments:   c.Instruments,
		PollInterval:  time.Duration(c.Scanner.PollInterval) * time.Second,
		HistoryBars:   c.Scanner.HistoryBars,
		AccountEquity: c.Scanner.AccountEquity,
		LotSize:       c.Backtest.LotSize,
		SwingWindow:   c.SwingWindow,
		Detector:      c.Detector,
		Scorer:        c.Scorer,
	}
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	AllowedOrigins  []string `json:"allowed_origins"`
	ReadTimeout     int      `json:"read_timeout"`     // seconds
	WriteTimeout    int      `json:"write_timeout"`    // seconds
	ShutdownTimeout int      `json:"shutdown_timeout"` // seconds
}

// AuthConfig holds the single-operator authentication settings.
type AuthConfig struct {
	Enabled              bool          `json:"enabled"`
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	OperatorUsername     string        `json:"operator_username"`
	// OperatorPassword is the bootstrap password; it is bcrypt-hashed at
	// startup and never stored in plain text beyond process memory.
	OperatorPassword string `json:"operator_password"`
}

// DatabaseConfig holds the PostgreSQL settings. Disabled means signals and
// backtest runs are not persisted.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the Redis settings used for signal deduplication.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Load reads the config file at path (default config.json when empty),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	// Best effort; env vars may also come from the process environment.
	_ = godotenv.Load()

	cfg := defaults()
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Instruments: []string{"EURUSD"},
		Interval:    "15m",
		SwingWindow: swing.DefaultWindow,
		Detector:    smc.DefaultConfig(),
		Scorer:      signal.DefaultConfig(),
		Backtest: BacktestConfig{
			StartingEquity: 10_000,
			MaxHoldingBars: 48,
			LotSize:        1,
		},
		Scanner: ScannerConfig{
			Enabled:       true,
			PollInterval:  30,
			HistoryBars:   500,
			AccountEquity: 10_000,
			DataDir:       "data",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		Auth: AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
			OperatorUsername:     "operator",
		},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres",
			Database: "smc_signals", SSLMode: "disable",
		},
		Redis: RedisConfig{
			Address: "localhost:6379", PoolSize: 10,
		},
		Logging: logging.Config{
			Level: "INFO", Output: "stdout", JSONFormat: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Logging.Output)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.Logging.JSONFormat = v == "true"
	}

	if v := os.Getenv("SCANNER_ENABLED"); v != "" {
		cfg.Scanner.Enabled = v == "true"
	}

	cfg.Server.Host = getEnvOrDefault("WEB_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", cfg.Server.Port)

	if v := os.Getenv("AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = v == "true"
	}
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.OperatorUsername = getEnvOrDefault("AUTH_OPERATOR_USERNAME", cfg.Auth.OperatorUsername)
	cfg.Auth.OperatorPassword = getEnvOrDefault("AUTH_OPERATOR_PASSWORD", cfg.Auth.OperatorPassword)

	if v := os.Getenv("DB_ENABLED"); v != "" {
		cfg.Database.Enabled = v == "true"
	}
	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.Database.SSLMode)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true"
	}
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
}

// Validate rejects any parameter the engine cannot run with. Errors name the
// offending field so a bad deployment fails with a usable message.
func (c *Config) Validate() error {
	if c.SwingWindow < 1 {
		return fmt.Errorf("swing_window must be >= 1, got %d", c.SwingWindow)
	}
	if c.Detector.ATRPeriod < 1 {
		return fmt.Errorf("detector.atr_period must be >= 1, got %d", c.Detector.ATRPeriod)
	}
	if c.Detector.SweepNoiseMult <= 0 {
		return fmt.Errorf("detector.sweep_noise_mult must be > 0, got %g", c.Detector.SweepNoiseMult)
	}
	if c.Detector.SweepMaxLookahead < 1 {
		return fmt.Errorf("detector.sweep_max_lookahead must be >= 1, got %d", c.Detector.SweepMaxLookahead)
	}
	if c.Detector.ImpulseBars < 2 {
		return fmt.Errorf("detector.impulse_bars must be >= 2, got %d", c.Detector.ImpulseBars)
	}
	if c.Detector.ImpulseRangeMult <= 0 {
		return fmt.Errorf("detector.impulse_range_mult must be > 0, got %g", c.Detector.ImpulseRangeMult)
	}
	if c.Scorer.ProximityATRMult <= 0 {
		return fmt.Errorf("scorer.proximity_atr_mult must be > 0, got %g", c.Scorer.ProximityATRMult)
	}
	if c.Scorer.StopBufferATRMult <= 0 {
		return fmt.Errorf("scorer.stop_buffer_atr_mult must be > 0, got %g", c.Scorer.StopBufferATRMult)
	}
	if c.Scorer.MinRiskReward < 1 {
		return fmt.Errorf("scorer.min_risk_reward must be >= 1, got %g", c.Scorer.MinRiskReward)
	}
	if c.Scorer.MaxPatternAge < 1 {
		return fmt.Errorf("scorer.max_pattern_age must be >= 1, got %d", c.Scorer.MaxPatternAge)
	}

	for _, w := range c.Sessions {
		if err := validateSessionParams(string(w.Name), w.Param); err != nil {
			return err
		}
	}
	if c.DeadZoneParams != nil {
		if err := validateSessionParams("dead_zone", *c.DeadZoneParams); err != nil {
			return err
		}
	}
	if _, err := c.SessionTable(); err != nil {
		return err
	}

	if c.Backtest.StartingEquity <= 0 {
		return fmt.Errorf("backtest.starting_equity must be > 0, got %g", c.Backtest.StartingEquity)
	}
	if c.Backtest.MaxHoldingBars < 1 {
		return fmt.Errorf("backtest.max_holding_bars must be >= 1, got %d", c.Backtest.MaxHoldingBars)
	}
	if c.Backtest.CommissionPct < 0 {
		return fmt.Errorf("backtest.commission_pct must be >= 0, got %g", c.Backtest.CommissionPct)
	}
	if c.Backtest.LotSize <= 0 {
		return fmt.Errorf("backtest.lot_size must be > 0, got %g", c.Backtest.LotSize)
	}

	if c.Scanner.Enabled {
		if len(c.Instruments) == 0 {
			return fmt.Errorf("instruments must not be empty when the scanner is enabled")
		}
		if c.Scanner.PollInterval < 1 {
			return fmt.Errorf("scanner.poll_interval must be >= 1, got %d", c.Scanner.PollInterval)
		}
		if c.Scanner.HistoryBars < c.Detector.MinHistory() {
			return fmt.Errorf("scanner.history_bars must be >= %d, got %d",
				c.Detector.MinHistory(), c.Scanner.HistoryBars)
		}
		if c.Scanner.AccountEquity <= 0 {
			return fmt.Errorf("scanner.account_equity must be > 0, got %g", c.Scanner.AccountEquity)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set when auth is enabled")
	}
	if c.Auth.Enabled && c.Auth.OperatorPassword == "" {
		return fmt.Errorf("auth.operator_password must be set when auth is enabled")
	}
	return nil
}

func validateSessionParams(name string, p session.Params) error {
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("session %s: min_confidence must be in [0, 1], got %g", name, p.MinConfidence)
	}
	if p.MinQuality < 0 || p.MinQuality > 1 {
		return fmt.Errorf("session %s: min_quality must be in [0, 1], got %g", name, p.MinQuality)
	}
	if p.MaxTradesPerDay < 0 {
		return fmt.Errorf("session %s: max_trades_per_day must be >= 0, got %d", name, p.MaxTradesPerDay)
	}
	if p.RiskPerTradePct < 0 || p.RiskPerTradePct > 100 {
		return fmt.Errorf("session %s: risk_per_trade_pct must be in [0, 100], got %g", name, p.RiskPerTradePct)
	}
	return nil
}

// SessionTable builds the session table from config, falling back to the
// built-in forex table when no windows are configured.
func (c *Config) SessionTable() (*session.Table, error) {
	if len(c.Sessions) == 0 {
		return session.Default(), nil
	}
	dead := session.Default().DeadZoneParams()
	if c.DeadZoneParams != nil {
		dead = *c.DeadZoneParams
	}
	return session.NewTable(c.Sessions, dead)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
