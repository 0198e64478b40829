package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smc-signal-engine/internal/session"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SwingWindow != 3 {
		t.Errorf("swing_window = %d, want default 3", cfg.SwingWindow)
	}
	if cfg.Detector.ATRPeriod != 14 {
		t.Errorf("atr_period = %d, want default 14", cfg.Detector.ATRPeriod)
	}
	if cfg.Scorer.MinRiskReward != 3.0 {
		t.Errorf("min_risk_reward = %g, want default 3", cfg.Scorer.MinRiskReward)
	}
	if cfg.Backtest.StartingEquity != 10_000 {
		t.Errorf("starting_equity = %g, want default 10000", cfg.Backtest.StartingEquity)
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"instruments": ["GBPUSD"],
		"swing_window": 5,
		"server": {"host": "127.0.0.1", "port": 9000}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEB_PORT", "9443")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SwingWindow != 5 {
		t.Errorf("swing_window = %d, want 5 from file", cfg.SwingWindow)
	}
	if len(cfg.Instruments) != 1 || cfg.Instruments[0] != "GBPUSD" {
		t.Errorf("instruments = %v, want [GBPUSD]", cfg.Instruments)
	}
	if cfg.Server.Port != 9443 {
		t.Errorf("port = %d, env must override file", cfg.Server.Port)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("log level = %s, want DEBUG from env", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero swing window", func(c *Config) { c.SwingWindow = 0 }, "swing_window"},
		{"one bar impulse", func(c *Config) { c.Detector.ImpulseBars = 1 }, "impulse_bars"},
		{"negative noise", func(c *Config) { c.Detector.SweepNoiseMult = -0.1 }, "sweep_noise_mult"},
		{"sub-unity rr", func(c *Config) { c.Scorer.MinRiskReward = 0.5 }, "min_risk_reward"},
		{"zero equity", func(c *Config) { c.Backtest.StartingEquity = 0 }, "starting_equity"},
		{"zero lot", func(c *Config) { c.Backtest.LotSize = 0 }, "lot_size"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth without secret", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.OperatorPassword = "pw"
		}, "jwt_secret"},
		{"confidence above one", func(c *Config) {
			c.Sessions = []session.Window{{
				Name: session.London, Start: 8, End: 17,
				Param: session.Params{MinConfidence: 1.5},
			}}
		}, "min_confidence"},
		{"scanner without instruments", func(c *Config) {
			c.Scanner.Enabled = true
			c.Instruments = nil
		}, "instruments"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not name %q", err, tc.want)
			}
		})
	}
}

func TestSessionTableFromConfig(t *testing.T) {
	cfg := defaults()
	cfg.Sessions = []session.Window{{
		Name: "ASIA", Start: 0, End: 8,
		Param: session.Params{MinConfidence: 0.8, MinQuality: 0.7, MaxTradesPerDay: 2, RiskPerTradePct: 0.5},
	}}

	table, err := cfg.SessionTable()
	if err != nil {
		t.Fatalf("session table: %v", err)
	}
	at := func(hour int) time.Time {
		return time.Date(2024, 3, 1, hour, 30, 0, 0, time.UTC)
	}
	name, params := table.Resolve(at(3))
	if name != "ASIA" || params.MaxTradesPerDay != 2 {
		t.Errorf("resolved %s %+v, want configured ASIA window", name, params)
	}
	if name, _ := table.Resolve(at(12)); name != session.DeadZone {
		t.Errorf("uncovered hour resolved to %s, want dead zone", name)
	}
}
