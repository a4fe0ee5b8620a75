package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"Corexia/internal/domain/models"
	"Corexia/internal/domain/service"
	"Corexia/internal/repository"
	"Corexia/internal/services/broker"
	applogger "Corexia/pkg/logger"
)

// Tuesday after the close.
var testNow = time.Date(2026, 5, 5, 20, 15, 0, 0, time.UTC)

type fakeSource struct {
	mu      sync.Mutex
	bundles map[string]*models.IndicatorBundle
	err     error
	calls   int
}

func (f *fakeSource) FetchBundle(_ context.Context, symbol string, _ []models.Timeframe) (*models.IndicatorBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bundles[symbol]
	if !ok {
		return nil, fmt.Errorf("fetch bundle %s: %w", symbol, models.ErrDataUnavailable)
	}
	return b, nil
}

// trendingBundle classifies as TRENDING, Bullish, Low friction.
func trendingBundle(symbol string, price float64, asOf time.Time) *models.IndicatorBundle {
	return &models.IndicatorBundle{
		Symbol:       symbol,
		AsOf:         asOf,
		CurrentPrice: price,
		Technical: &models.TechnicalLayer{
			Structure: models.StructureReading{BalanceState: models.Str(string(models.BalanceBreakout))},
		},
		MASystem: &models.MASystemLayer{Regime: models.Str("Bull"), Signal: models.Str("None")},
		Regime:   &models.MacroLayer{Macro: models.Str("Risk-On")},
		Timeframes: map[models.Timeframe]models.TimeframeReading{
			models.TF1W: {MARegime: models.Str("Bull")},
			models.TF1D: {MARegime: models.Str("Bull")},
		},
	}
}

// scriptedAgent lets orchestrator tests pick the decide outcome directly.
type scriptedAgent struct {
	profile models.AgentProfile
	decide  func(models.MarketContext) models.Outcome
}

func (a *scriptedAgent) Kind() models.AgentKind                        { return a.profile.Kind }
func (a *scriptedAgent) Profile() models.AgentProfile                  { return a.profile }
func (a *scriptedAgent) Interpret(models.MarketContext) string         { return "scripted" }
func (a *scriptedAgent) Decide(mc models.MarketContext) models.Outcome { return a.decide(mc) }

var _ service.Agent = (*scriptedAgent)(nil)

func scriptedProfile(id string) models.AgentProfile {
	return models.AgentProfile{
		ID:                id,
		Kind:              models.KindOperator,
		AllowedDrift:      []models.Drift{models.DriftNone, models.DriftStable, models.DriftMinor},
		AllowedFriction:   []models.Friction{models.FrictionLow, models.FrictionModerate},
		MaxPositionPct:    0.2,
		MaxPositions:      2,
		MaxDrawdownPct:    0.1,
		DailyLossLimitPct: 0.02,
	}
}

func proposeLong(size float64) func(models.MarketContext) models.Outcome {
	return func(mc models.MarketContext) models.Outcome {
		return models.Outcome{Decision: &models.Decision{
			Action:     models.ActionLong,
			Symbol:     mc.Snapshot.Symbol,
			SizePct:    size,
			Rationale:  "scripted long",
			Confidence: 0.7,
		}}
	}
}

type fakeMetrics struct {
	mu       sync.Mutex
	branches map[string][]models.Branch
	warnings []string
	equity   map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{branches: map[string][]models.Branch{}, equity: map[string]float64{}}
}

func (m *fakeMetrics) RecordCycle(agentID string, b models.Branch) {
	m.mu.Lock()
	m.branches[agentID] = append(m.branches[agentID], b)
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordCycleDuration(string, float64) {}
func (m *fakeMetrics) RecordPersistenceWarning(op string) {
	m.mu.Lock()
	m.warnings = append(m.warnings, op)
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordFetch(string, bool, float64)                                        {}
func (m *fakeMetrics) RecordSnapshot(string, models.MarketState, models.Friction, models.Drift) {}
func (m *fakeMetrics) RecordEquity(agentID string, equity, _ float64) {
	m.mu.Lock()
	m.equity[agentID] = equity
	m.mu.Unlock()
}

// brokenArchive fails every read and write.
type brokenArchive struct{}

var errBroken = errors.New("archive offline")

func (brokenArchive) Append(context.Context, models.ArchiveRecord) (bool, error) {
	return false, errBroken
}
func (brokenArchive) LoadFingerprint(context.Context, string, time.Time) (*models.RegimeFingerprint, error) {
	return nil, errBroken
}
func (brokenArchive) QuerySimilar(context.Context, string, models.MarketState, models.Friction, int) ([]models.ArchiveRecord, error) {
	return nil, errBroken
}
func (brokenArchive) Pending(context.Context, string, time.Time) ([]models.ArchiveRecord, error) {
	return nil, errBroken
}
func (brokenArchive) UpdateOutcome(context.Context, models.ArchiveRecord) error { return errBroken }

type harness struct {
	source    *fakeSource
	archive   *repository.MemoryArchive
	state     *repository.MemoryAgentState
	decisions *repository.MemoryDecisionLog
	metrics   *fakeMetrics
	builder   *MarketContextBuilder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source: &fakeSource{bundles: map[string]*models.IndicatorBundle{
			"SPY": trendingBundle("SPY", 512.5, testNow),
		}},
		archive:   repository.NewMemoryArchive(),
		state:     repository.NewMemoryAgentState(),
		decisions: repository.NewMemoryDecisionLog(),
		metrics:   newFakeMetrics(),
	}
	h.builder = NewMarketContextBuilder(h.source, h.archive, nil, h.metrics, applogger.Nop())
	return h
}

func (h *harness) orchestrator(registry ...service.Agent) *CycleOrchestrator {
	ids := 0
	recorder := NewDecisionRecorder(nil, h.decisions, h.metrics, BackendMemory, applogger.Nop())
	perf := NewPerformanceUpdater(h.state, nil, h.metrics, 10000)
	return NewCycleOrchestrator(
		h.builder, registry, h.state,
		broker.NewPaperBroker(h.state),
		recorder, perf, h.metrics, applogger.Nop(),
		WithCycleClock(func() time.Time { return testNow }),
		WithCycleIDs(func() string { ids++; return fmt.Sprintf("id-%d", ids) }),
	)
}

func (h *harness) logs(t *testing.T) []models.DecisionLog {
	t.Helper()
	recs, err := h.decisions.Recent(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	return recs
}
