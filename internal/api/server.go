// Package api exposes the engine over HTTP: signal and backtest queries,
// an on-demand backtest endpoint and a websocket feed of live events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/auth"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/session"
)

// Repository is the persistence surface the API reads from and writes to.
// database.Repository satisfies it; it is nil when persistence is disabled.
type Repository interface {
	HealthCheck(ctx context.Context) error
	ListSignals(ctx context.Context, instrument string, limit int) ([]database.SignalRecord, error)
	SaveBacktestRun(ctx context.Context, res *backtest.Result) (string, error)
	ListBacktestRuns(ctx context.Context, limit int) ([]database.RunRecord, error)
}

// RateLimiter is a simple in-memory per-endpoint rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow reports whether a request for the given key fits within the window.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Config holds the HTTP server settings.
type Config struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Instruments     []string
	ProductionMode  bool
	BacktestConfig  backtest.Config
	BacktestRateCap int // backtest runs allowed per minute; 0 means default
}

// Server is the HTTP API server.
type Server struct {
	cfg         Config
	router      *gin.Engine
	httpServer  *http.Server
	repo        Repository
	authService *auth.Service
	sessions    *session.Table
	hub         *WSHub
	rateLimiter *RateLimiter
	log         zerolog.Logger
}

// NewServer assembles the router. repo, authService and bus may be nil; the
// corresponding features degrade instead of failing.
func NewServer(
	cfg Config,
	repo Repository,
	authService *auth.Service,
	sessions *session.Table,
	bus *events.Bus,
	log zerolog.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if sessions == nil {
		sessions = session.Default()
	}
	if cfg.BacktestRateCap <= 0 {
		cfg.BacktestRateCap = 10
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		cfg:         cfg,
		router:      router,
		repo:        repo,
		authService: authService,
		sessions:    sessions,
		hub:         NewWSHub(bus, log),
		rateLimiter: NewRateLimiter(cfg.BacktestRateCap, time.Minute),
		log:         log,
	}
	s.setupRoutes()
	go s.hub.Run()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": s.authService != nil})
	})
	if s.authService != nil {
		s.router.POST("/api/auth/login", s.handleLogin)
		s.router.POST("/api/auth/refresh", s.handleRefresh)
	}

	api := s.router.Group("/api/v1")
	api.Use(auth.Middleware(s.authService))
	{
		api.GET("/instruments", s.handleInstruments)
		api.GET("/session", s.handleCurrentSession)

		api.GET("/signals", s.handleListSignals)

		api.POST("/backtest", s.rateLimitMiddleware("backtest"), s.handleRunBacktest)
		api.GET("/backtest/runs", s.handleListBacktestRuns)

		api.GET("/ws", s.hub.handleWebSocket)
	}
}

// rateLimitMiddleware guards expensive endpoints; a backtest run walks the
// full bar history it is given.
func (s *Server) rateLimitMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}

// Start runs the HTTP server until it is shut down. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("http server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
