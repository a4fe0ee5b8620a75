package usecase

import (
	"context"
	"errors"
	"time"

	"Corexia/internal/domain/models"
	"Corexia/pkg/cache"
)

// ErrRunInProgress is returned when another run holds the lock for the symbol.
var ErrRunInProgress = errors.New("agent run already in progress")

// RunGuard serializes agent runs per symbol across processes through the
// cache lock, so the scheduler and the API never run the same symbol twice at once.
type RunGuard struct {
	orch  *CycleOrchestrator
	locks cache.Service
	ttl   time.Duration
}

func NewRunGuard(orch *CycleOrchestrator, locks cache.Service, ttl time.Duration) *RunGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunGuard{orch: orch, locks: locks, ttl: ttl}
}

func (g *RunGuard) RunAll(ctx context.Context, symbol string) ([]models.CycleResult, error) {
	var (
		results []models.CycleResult
		runErr  error
	)
	ran, err := cache.WithLock(ctx, g.locks, cache.Key("lock", "run", symbol), g.ttl, func(ctx context.Context) error {
		results, runErr = g.orch.RunAll(ctx, symbol)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !ran {
		return nil, ErrRunInProgress
	}
	return results, runErr
}

func (g *RunGuard) Classify(ctx context.Context, symbol string) (models.RegimeSnapshot, error) {
	return g.orch.Classify(ctx, symbol)
}

func (g *RunGuard) MarketContext(ctx context.Context, symbol string) (models.MarketContext, error) {
	return g.orch.MarketContext(ctx, symbol)
}
