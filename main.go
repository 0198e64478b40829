// smc-signal-engine detects smart-money-concept patterns on streaming bars,
// scores confluent setups into trade signals and serves them over an HTTP
// and websocket API. A backtest CLI lives in cmd/backtest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/api"
	"smc-signal-engine/internal/auth"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/feed"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/scanner"
)

func main() {
	configPath := flag.String("config", "", "config file (default config.json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging)
	log.Info().Str("interval", cfg.Interval).Strs("instruments", cfg.Instruments).Msg("engine starting")

	bus := events.NewBus()

	var repo *database.Repository
	if cfg.Database.Enabled {
		db, err := database.New(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Migrate(ctx); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("database migration failed")
		}
		cancel()
		repo = database.NewRepository(db)
		log.Info().Msg("database ready")
	}

	var dedup scanner.Deduper
	if cfg.Redis.Enabled {
		signalCache := cache.New(cache.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, log)
		defer signalCache.Close()
		dedup = signalCache
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		authService, err = auth.NewService(
			cfg.Auth.OperatorUsername,
			cfg.Auth.OperatorPassword,
			cfg.Auth.JWTSecret,
			cfg.Auth.AccessTokenDuration,
			cfg.Auth.RefreshTokenDuration,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("auth setup failed")
		}
		log.Info().Str("operator", cfg.Auth.OperatorUsername).Msg("auth enabled")
	}

	sessions, err := cfg.SessionTable()
	if err != nil {
		log.Fatal().Err(err).Msg("session table invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scanner.Enabled {
		source, err := feed.NewReplayFromDir(cfg.Scanner.DataDir, cfg.Instruments, cfg.Scanner.HistoryBars)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.Scanner.DataDir).Msg("bar feed setup failed")
		}

		var store scanner.SignalStore
		if repo != nil {
			store = repo
		}
		sc := scanner.New(cfg.ScanConfig(), sessions, source, nil, dedup, store, bus, log)
		go sc.Run(ctx)
		log.Info().Int("instruments", len(cfg.Instruments)).Msg("scanner started")
	}

	server := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		Instruments:    cfg.Instruments,
		ProductionMode: true,
		BacktestConfig: cfg.EngineConfig(),
	}, apiRepo(repo), authService, sessions, bus, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

// apiRepo converts a possibly-nil concrete repository into the API's
// interface without producing a non-nil interface around a nil pointer.
func apiRepo(repo *database.Repository) api.Repository {
	if repo == nil {
		return nil
	}
	return repo
}
