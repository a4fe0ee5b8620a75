package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/service/ratelimit"
	"Corexia/internal/usecase"
	xhttp "Corexia/pkg/http"
	xlogger "Corexia/pkg/logger"
)

// Runner runs agents and answers regime queries.
type Runner interface {
	RunAll(ctx context.Context, symbol string) ([]models.CycleResult, error)
	Classify(ctx context.Context, symbol string) (models.RegimeSnapshot, error)
	MarketContext(ctx context.Context, symbol string) (models.MarketContext, error)
}

// Reader answers read-only portfolio and history queries.
type Reader interface {
	Status(ctx context.Context) ([]models.AgentStatus, error)
	Similarity(ctx context.Context, symbol string, state models.MarketState, friction models.Friction) (models.SimilarityStats, error)
	RecentDecisions(ctx context.Context, limit int) ([]models.DecisionLog, error)
}

type CandleReader interface {
	GetCandles(ctx context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error)
}

type PositionCloser interface {
	ClosePosition(ctx context.Context, agentID, positionID string, price float64) (*models.Position, error)
}

// AgentsEchoHandler serves the regime and agent API.
type AgentsEchoHandler struct {
	logger  *xlogger.Logger
	runner  Runner
	reader  Reader
	candles CandleReader
	closer  PositionCloser
	limiter *ratelimit.Limiter
}

var _ xhttp.Handler = (*AgentsEchoHandler)(nil)

func NewAgentsEchoHandler(logger *xlogger.Logger, runner Runner, reader Reader, candles CandleReader, closer PositionCloser, limiter *ratelimit.Limiter) *AgentsEchoHandler {
	return &AgentsEchoHandler{logger: logger, runner: runner, reader: reader, candles: candles, closer: closer, limiter: limiter}
}

func (h *AgentsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/regime", h.Regime)
	g.GET("/similarity", h.Similarity)
	g.POST("/run", h.Run)
	g.GET("/status", h.Status)
	g.POST("/agents/:agent/positions/:id/close", h.ClosePosition)
	g.GET("/decisions/recent", h.RecentDecisions)
	g.GET("/candles", h.Candles)
}

func (h *AgentsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok", "service": "corexia"})
}

// Regime returns the full context agents would see for the symbol. It runs no agent.
func (h *AgentsEchoHandler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	mc, err := h.runner.MarketContext(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "regime", req.Symbol, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, mc)
}

// Similarity defaults state and friction to the symbol's current classification.
func (h *AgentsEchoHandler) Similarity(c echo.Context) error {
	req := &models.SimilarityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	state, friction := models.MarketState(req.State), models.Friction(req.Friction)
	if state == "" || friction == "" {
		snap, err := h.runner.Classify(ctx, req.Symbol)
		if err != nil {
			return h.fail(c, "similarity", req.Symbol, err)
		}
		if state == "" {
			state = snap.State
		}
		if friction == "" {
			friction = snap.Friction
		}
	}

	stats, err := h.reader.Similarity(ctx, req.Symbol, state, friction)
	if err != nil {
		return h.fail(c, "similarity", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":     req.Symbol,
		"state":      state,
		"friction":   friction,
		"similarity": stats,
	})
}

func (h *AgentsEchoHandler) Run(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()+":run") {
		h.logger.Warn("run rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("agent runs are rate limited"))
	}
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start := time.Now()
	results, err := h.runner.RunAll(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "run", req.Symbol, err)
	}
	h.logger.Info("run completed",
		xlogger.String("symbol", req.Symbol),
		xlogger.Int("agents", len(results)),
		xlogger.Duration("took", time.Since(start)),
	)
	return xhttp.SuccessResponse(c, results)
}

func (h *AgentsEchoHandler) Status(c echo.Context) error {
	statuses, err := h.reader.Status(c.Request().Context())
	if err != nil {
		return h.fail(c, "status", "", err)
	}
	return xhttp.ListResponse(c, statuses, int64(len(statuses)))
}

// ClosePosition closes one paper position by hand.
func (h *AgentsEchoHandler) ClosePosition(c echo.Context) error {
	req := &models.ClosePositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	pos, err := h.closer.ClosePosition(c.Request().Context(), req.Agent, req.PositionID, req.Price)
	if err != nil {
		var appErr *xhttp.AppError
		switch {
		case errors.Is(err, domrepo.ErrNotFound):
			appErr = xhttp.NotFoundErrorf("position %s not found for %s", req.PositionID, req.Agent)
		case errors.Is(err, models.ErrPositionClosed):
			appErr = xhttp.ConflictErrorf("position %s is already closed", req.PositionID)
		case errors.Is(err, usecase.ErrNoMarkPrice):
			appErr = xhttp.BadRequestErrorf("price is required: no live price for position %s", req.PositionID)
		default:
			return h.fail(c, "close position", "", err)
		}
		return xhttp.AppErrorResponse(c, appErr.WithError(err))
	}
	return xhttp.SuccessResponse(c, pos)
}

func (h *AgentsEchoHandler) RecentDecisions(c echo.Context) error {
	req := &models.RecentDecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	recs, err := h.reader.RecentDecisions(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "decisions", "", err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *AgentsEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, _ := time.Parse(time.DateOnly, req.From)
	to, _ := time.Parse(time.DateOnly, req.To)
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("from must not be after to"))
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
	})
	if err != nil {
		return h.fail(c, "candles", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AgentsEchoHandler) fail(c echo.Context, endpoint, symbol string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		appErr = xhttp.ConflictErrorf("a run for %s is already in progress", symbol)
	case errors.Is(err, models.ErrDataUnavailable):
		appErr = xhttp.UnavailableErrorf("no indicator data for %s", symbol)
	default:
		appErr = xhttp.InternalErrorf("%s failed", endpoint)
	}
	h.logger.Error(endpoint+" usecase error",
		xlogger.String("symbol", symbol),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
