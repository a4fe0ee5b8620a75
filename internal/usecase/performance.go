package usecase

import (
	"context"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/services/portfolio"
)

// PerformanceUpdater recomputes an agent's daily performance row from its
// position history and stores it.
type PerformanceUpdater struct {
	state   domrepo.AgentStateStore
	history domrepo.PerformanceHistory
	metrics domrepo.Metrics
	capital float64
}

// NewPerformanceUpdater builds an updater. history may be nil when no
// long-term store is configured.
func NewPerformanceUpdater(state domrepo.AgentStateStore, history domrepo.PerformanceHistory, metrics domrepo.Metrics, capital float64) *PerformanceUpdater {
	return &PerformanceUpdater{state: state, history: history, metrics: metrics, capital: capital}
}

func (u *PerformanceUpdater) Update(ctx context.Context, agentID string, now time.Time) (models.DailyPerformance, error) {
	positions, err := u.state.Positions(ctx, agentID)
	if err != nil {
		return models.DailyPerformance{}, fmt.Errorf("load positions %s: %w", agentID, err)
	}
	st, err := u.state.RuntimeState(ctx, agentID, now, 0)
	if err != nil {
		return models.DailyPerformance{}, fmt.Errorf("load runtime state %s: %w", agentID, err)
	}

	perf := portfolio.Evaluate(agentID, u.capital, positions, st, now, now)
	if err := u.state.UpsertPerformance(ctx, perf); err != nil {
		return perf, fmt.Errorf("upsert performance %s: %w", agentID, err)
	}
	if u.history != nil {
		if err := u.history.Upsert(ctx, perf); err != nil {
			u.metrics.RecordPersistenceWarning("performance_history")
		}
	}
	u.metrics.RecordEquity(agentID, perf.Equity, perf.Drawdown)
	return perf, nil
}
