package usecase

import (
	"context"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
	"Corexia/internal/services/portfolio"
	"Corexia/internal/services/risk"
	"Corexia/internal/services/similarity"
)

// recentScan bounds how far back Status looks for each agent's last decision.
const recentScan = 200

// QueryService answers the read-only API queries. It never writes.
type QueryService struct {
	agents    []service.Agent
	state     domrepo.AgentStateStore
	archive   domrepo.ArchiveStore
	decisions domrepo.DecisionLogStore
	feed      service.PriceFeed
	now       func() time.Time
}

func NewQueryService(
	registry []service.Agent,
	state domrepo.AgentStateStore,
	archive domrepo.ArchiveStore,
	decisions domrepo.DecisionLogStore,
	feed service.PriceFeed,
) *QueryService {
	return &QueryService{
		agents:    registry,
		state:     state,
		archive:   archive,
		decisions: decisions,
		feed:      feed,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Status reports every agent's health, open book and last decision time.
// Open positions are marked at the live feed price when one is available.
func (q *QueryService) Status(ctx context.Context) ([]models.AgentStatus, error) {
	recent, err := q.decisions.Recent(ctx, recentScan)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	last := make(map[string]time.Time, len(q.agents))
	for _, d := range recent {
		if t, ok := last[d.AgentID]; !ok || d.Timestamp.After(t) {
			last[d.AgentID] = d.Timestamp
		}
	}

	now := q.now()
	out := make([]models.AgentStatus, 0, len(q.agents))
	for _, a := range q.agents {
		p := a.Profile()
		st, err := q.state.RuntimeState(ctx, p.ID, now, 0)
		if err != nil {
			return nil, fmt.Errorf("runtime state %s: %w", p.ID, err)
		}
		status := models.AgentStatus{
			Profile:       p,
			Health:        risk.Health(st.LatestPerformance()),
			OpenPositions: st.OpenPositions,
			Today:         st.Today,
		}
		if q.feed != nil {
			status.UnrealizedPnL = portfolio.UnrealizedPct(st.OpenPositions, q.feed.LastPrice)
		}
		if t, ok := last[p.ID]; ok {
			status.LastDecisionAt = &t
		}
		out = append(out, status)
	}
	return out, nil
}

// Similarity summarizes archived outcomes for one state and friction pair.
func (q *QueryService) Similarity(ctx context.Context, symbol string, state models.MarketState, friction models.Friction) (models.SimilarityStats, error) {
	recs, err := q.archive.QuerySimilar(ctx, symbol, state, friction, similarity.MaxMatches)
	if err != nil {
		return models.SimilarityStats{}, fmt.Errorf("query similar %s: %w", symbol, err)
	}
	return similarity.Summarize(recs), nil
}

// RecentDecisions returns up to limit decision logs, newest first.
func (q *QueryService) RecentDecisions(ctx context.Context, limit int) ([]models.DecisionLog, error) {
	recs, err := q.decisions.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	return recs, nil
}
