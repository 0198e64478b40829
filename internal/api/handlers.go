package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/auth"
	"smc-signal-engine/internal/backtest"
	"smc-signal-engine/internal/market"
)

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if s.repo == nil {
		resp["database"] = "disabled"
		c.JSON(http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		resp["status"] = "unhealthy"
		resp["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["database"] = "healthy"
	c.JSON(http.StatusOK, resp)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "username and password are required")
		return
	}

	pair, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			errorResponse(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.log.Error().Err(err).Msg("login failed")
		errorResponse(c, http.StatusInternalServerError, "login failed")
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := s.authService.Refresh(req.RefreshToken)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (s *Server) handleInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instruments": s.cfg.Instruments})
}

func (s *Server) handleCurrentSession(c *gin.Context) {
	now := time.Now().UTC()
	name, params := s.sessions.Resolve(now)
	c.JSON(http.StatusOK, gin.H{
		"session":            name,
		"min_confidence":     params.MinConfidence,
		"min_quality":        params.MinQuality,
		"max_trades_per_day": params.MaxTradesPerDay,
		"risk_per_trade_pct": params.RiskPerTradePct,
		"time":               now.Format(time.RFC3339),
	})
}

func (s *Server) handleListSignals(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	instrument := c.Query("instrument")

	signals, err := s.repo.ListSignals(c.Request.Context(), instrument, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list signals failed")
		errorResponse(c, http.StatusInternalServerError, "failed to list signals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

type backtestRequest struct {
	Instrument string       `json:"instrument" binding:"required"`
	Bars       []market.Bar `json:"bars" binding:"required"`
	// Persist stores the run when a database is configured.
	Persist bool `json:"persist"`
}

func (s *Server) handleRunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "instrument and bars are required")
		return
	}

	engine := backtest.New(s.cfg.BacktestConfig, s.sessions, s.log)
	res, err := engine.Run(req.Instrument, req.Bars)
	if err != nil {
		if errors.Is(err, market.ErrInsufficientHistory) || errors.Is(err, market.ErrOutOfOrderBar) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Str("instrument", req.Instrument).Msg("backtest failed")
		errorResponse(c, http.StatusInternalServerError, "backtest failed")
		return
	}

	resp := gin.H{"result": res}
	if req.Persist && s.repo != nil && len(res.Trades) > 0 {
		runID, err := s.repo.SaveBacktestRun(c.Request.Context(), res)
		if err != nil {
			s.log.Error().Err(err).Msg("backtest persist failed")
		} else {
			resp["run_id"] = runID
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListBacktestRuns(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.repo.ListBacktestRuns(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list backtest runs failed")
		errorResponse(c, http.StatusInternalServerError, "failed to list backtest runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
