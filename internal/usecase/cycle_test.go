package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	"Corexia/internal/services/broker"
	"Corexia/internal/services/regime"
	"Corexia/pkg/cache"
	applogger "Corexia/pkg/logger"
)

func TestRunAgentCycle_Branches(t *testing.T) {
	highOnly := scriptedProfile("gated")
	highOnly.AllowedFriction = []models.Friction{models.FrictionHigh}

	tests := []struct {
		name       string
		profile    models.AgentProfile
		decide     func(models.MarketContext) models.Outcome
		wantBranch models.Branch
		wantIntent string
		wantReason string
		wantAction string
	}{
		{
			name:       "friction gate",
			profile:    highOnly,
			decide:     func(models.MarketContext) models.Outcome { panic("decide must not run") },
			wantBranch: models.BranchGateBlocked,
			wantIntent: models.IntentGateBlocked,
			wantReason: "Market friction blocked: Low",
		},
		{
			name:    "decision blocked",
			profile: scriptedProfile("blocked"),
			decide: func(models.MarketContext) models.Outcome {
				return models.Outcome{BlockReason: "Historical support insufficient: 0.0%"}
			},
			wantBranch: models.BranchDecisionBlocked,
			wantIntent: models.IntentDecisionBlocked,
			wantReason: "Historical support insufficient: 0.0%",
		},
		{
			name:       "abstained",
			profile:    scriptedProfile("idle"),
			decide:     func(models.MarketContext) models.Outcome { return models.Outcome{} },
			wantBranch: models.BranchAbstained,
			wantIntent: models.IntentAbstained,
			wantAction: "FLAT",
		},
		{
			name:       "risk blocked",
			profile:    scriptedProfile("greedy"),
			decide:     proposeLong(0.5),
			wantBranch: models.BranchRiskBlocked,
			wantIntent: "scripted long",
			wantReason: "Position size 50.0% exceeds max 20.0%",
			wantAction: "LONG SPY",
		},
		{
			name:       "executed",
			profile:    scriptedProfile("trader"),
			decide:     proposeLong(0.1),
			wantBranch: models.BranchExecuted,
			wantIntent: "scripted long",
			wantAction: "LONG SPY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			a := &scriptedAgent{profile: tt.profile, decide: tt.decide}
			res := h.orchestrator(a).RunAgentCycle(context.Background(), a, "SPY")

			assert.Empty(t, res.Err)
			assert.Equal(t, tt.wantBranch, res.Log.Branch)
			assert.Equal(t, tt.wantIntent, res.Log.Intent)
			assert.Equal(t, tt.wantReason, res.Log.BlockedReason)
			assert.Equal(t, tt.wantAction, res.Log.ProposedAction)
			assert.Equal(t, "TRENDING", res.Log.MarketState)
			assert.Equal(t, "Low", res.Log.Friction)
			assert.Equal(t, "None", res.Log.Drift)
			assert.Equal(t, testNow, res.Log.Timestamp)

			logs := h.logs(t)
			require.Len(t, logs, 1, "exactly one decision log per cycle")
			assert.Equal(t, res.Log, logs[0])
			assert.Equal(t, []models.Branch{tt.wantBranch}, h.metrics.branches[tt.profile.ID])
		})
	}
}

func TestRunAgentCycle_ExecutionOpensPositionAndUpdatesPerformance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := &scriptedAgent{profile: scriptedProfile("trader"), decide: proposeLong(0.1)}

	res := h.orchestrator(a).RunAgentCycle(ctx, a, "SPY")
	require.Equal(t, models.BranchExecuted, res.Log.Branch)
	require.NotNil(t, res.Position)
	require.NotNil(t, res.Decision)
	assert.Equal(t, 512.5, res.Position.EntryPrice)
	assert.Equal(t, 0.1, res.Log.SizePct)
	assert.Equal(t, 0.7, res.Log.Confidence)

	st, err := h.state.RuntimeState(ctx, "trader", testNow, 1)
	require.NoError(t, err)
	require.Len(t, st.OpenPositions, 1)
	require.NotNil(t, st.Today)
	assert.Equal(t, 10000.0, st.Today.Equity)
	assert.InDelta(t, 0.1, st.Today.Exposure, 1e-9)
	assert.Equal(t, 10000.0, h.metrics.equity["trader"])
}

func TestRunAgentCycle_MaxPositionsBlocksSecondRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := scriptedProfile("trader")
	p.MaxPositions = 1
	a := &scriptedAgent{profile: p, decide: proposeLong(0.1)}
	o := h.orchestrator(a)

	assert.Equal(t, models.BranchExecuted, o.RunAgentCycle(ctx, a, "SPY").Log.Branch)
	res := o.RunAgentCycle(ctx, a, "SPY")
	assert.Equal(t, models.BranchRiskBlocked, res.Log.Branch)
	assert.Equal(t, "Max positions reached: 1/1", res.Log.BlockedReason)
	assert.Len(t, h.logs(t), 2)
}

func TestRunAgentCycle_PanicIsContained(t *testing.T) {
	h := newHarness(t)
	bad := &scriptedAgent{
		profile: scriptedProfile("bad"),
		decide:  func(models.MarketContext) models.Outcome { panic("boom") },
	}
	good := &scriptedAgent{profile: scriptedProfile("good"), decide: proposeLong(0.1)}

	results, err := h.orchestrator(bad, good).RunAll(context.Background(), "SPY")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.BranchFailed, results[0].Log.Branch)
	assert.Equal(t, models.IntentFailed, results[0].Log.Intent)
	assert.Equal(t, "panic: boom", results[0].Log.BlockedReason)
	assert.Equal(t, "panic: boom", results[0].Err)
	assert.Equal(t, models.BranchExecuted, results[1].Log.Branch, "next agent still runs")
	assert.Len(t, h.logs(t), 2)
}

func TestRunAll_SharesOneFetch(t *testing.T) {
	h := newHarness(t)
	agents := []*scriptedAgent{
		{profile: scriptedProfile("a"), decide: func(models.MarketContext) models.Outcome { return models.Outcome{} }},
		{profile: scriptedProfile("b"), decide: proposeLong(0.1)},
		{profile: scriptedProfile("c"), decide: proposeLong(0.15)},
	}
	o := h.orchestrator(agents[0], agents[1], agents[2])

	results, err := o.RunAll(context.Background(), "SPY")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, h.source.calls)

	runID := results[0].Log.RunID
	ids := map[string]bool{}
	for i, r := range results {
		assert.Equal(t, agents[i].profile.ID, r.Log.AgentID)
		assert.Equal(t, runID, r.Log.RunID)
		ids[r.Log.ID] = true
	}
	assert.Len(t, ids, 3)
	assert.Len(t, h.logs(t), 3)
}

func TestRunAll_SourceFailureLogsEveryAgent(t *testing.T) {
	h := newHarness(t)
	h.source.err = fmt.Errorf("fetch bundle SPY: %w", models.ErrDataUnavailable)
	a := &scriptedAgent{profile: scriptedProfile("a"), decide: proposeLong(0.1)}
	b := &scriptedAgent{profile: scriptedProfile("b"), decide: proposeLong(0.1)}

	results, err := h.orchestrator(a, b).RunAll(context.Background(), "SPY")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.BranchFailed, r.Log.Branch)
		assert.Contains(t, r.Log.BlockedReason, "data unavailable")
		assert.Equal(t, "SPY", r.Log.Symbol)
	}
	assert.Len(t, h.logs(t), 2)
}

func TestRunAll_CancelledMidRunLogsRemainingAgents(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &scriptedAgent{profile: scriptedProfile("first"), decide: func(models.MarketContext) models.Outcome {
		cancel()
		return models.Outcome{}
	}}
	second := &scriptedAgent{profile: scriptedProfile("second"), decide: proposeLong(0.1)}
	third := &scriptedAgent{profile: scriptedProfile("third"), decide: proposeLong(0.1)}

	results, err := h.orchestrator(first, second, third).RunAll(ctx, "SPY")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 3)

	assert.Equal(t, models.BranchAbstained, results[0].Log.Branch)
	for _, r := range results[1:] {
		assert.Equal(t, models.BranchFailed, r.Log.Branch)
		assert.Equal(t, models.IntentFailed, r.Log.Intent)
		assert.Equal(t, "run aborted: context canceled", r.Log.BlockedReason)
		assert.Equal(t, string(models.StateTrending), r.Log.MarketState)
		assert.Equal(t, results[0].Log.RunID, r.Log.RunID)
	}

	logs := h.logs(t)
	require.Len(t, logs, 3)
	agents := map[string]bool{}
	for _, l := range logs {
		agents[l.AgentID] = true
	}
	assert.Equal(t, map[string]bool{"first": true, "second": true, "third": true}, agents)

	open, err := h.state.Positions(context.Background(), "second")
	require.NoError(t, err)
	assert.Empty(t, open, "aborted agents never reach the broker")
}

// panicSink panics on its first write and records the rest.
type panicSink struct {
	calls int
	recs  []models.DecisionLog
}

func (s *panicSink) Record(_ context.Context, rec models.DecisionLog) error {
	s.calls++
	if s.calls == 1 {
		panic("sink exploded")
	}
	s.recs = append(s.recs, rec)
	return nil
}

func TestRunAgentCycle_PanicWhileRecordingIsNotRecordedTwice(t *testing.T) {
	h := newHarness(t)
	sink := &panicSink{}
	o := NewCycleOrchestrator(
		h.builder, nil, h.state, broker.NewPaperBroker(h.state), sink,
		NewPerformanceUpdater(h.state, nil, h.metrics, 10000),
		h.metrics, applogger.Nop(),
		WithCycleClock(func() time.Time { return testNow }),
	)
	a := &scriptedAgent{profile: scriptedProfile("quiet"), decide: func(models.MarketContext) models.Outcome { return models.Outcome{} }}

	res := o.RunAgentCycle(context.Background(), a, "SPY")
	assert.Equal(t, 1, sink.calls)
	assert.Empty(t, sink.recs)
	assert.Equal(t, models.BranchAbstained, res.Log.Branch)
	assert.Equal(t, "panic: sink exploded", res.Err)
}

type failingDecisions struct{}

func (failingDecisions) Insert(context.Context, models.DecisionLog) error        { return errors.New("down") }
func (failingDecisions) InsertBatch(context.Context, []models.DecisionLog) error { return errors.New("down") }
func (failingDecisions) Recent(context.Context, int) ([]models.DecisionLog, error) {
	return nil, errors.New("down")
}

func TestRunAgentCycle_LogWriteFailureIsAWarning(t *testing.T) {
	h := newHarness(t)
	a := &scriptedAgent{profile: scriptedProfile("trader"), decide: proposeLong(0.1)}
	o := NewCycleOrchestrator(
		h.builder, nil, h.state, nil,
		NewDecisionRecorder(nil, failingDecisions{}, h.metrics, BackendMemory, applogger.Nop()),
		NewPerformanceUpdater(h.state, nil, h.metrics, 10000),
		h.metrics, applogger.Nop(),
		WithCycleClock(func() time.Time { return testNow }),
	)
	a.decide = func(models.MarketContext) models.Outcome { return models.Outcome{} }

	res := o.RunAgentCycle(context.Background(), a, "SPY")
	assert.Equal(t, models.BranchAbstained, res.Log.Branch)
	assert.Empty(t, res.Err)
	assert.Contains(t, h.metrics.warnings, "record_decision")
}

func TestMarketContextBuilder_DriftAgainstPreviousSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	monday := time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)
	h.source.bundles["QQQ"] = trendingBundle("QQQ", 440, monday)

	prior := regime.Fingerprint(regime.Classify(h.source.bundles["QQQ"]))
	prior.MarketState = models.StateRange
	prior.MarketFriction = models.FrictionHigh
	friday := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := h.archive.Append(ctx, models.ArchiveRecord{Symbol: "QQQ", Date: friday, Fingerprint: prior})
	require.NoError(t, err)

	mc, err := h.builder.Build(ctx, "QQQ")
	require.NoError(t, err)
	assert.Equal(t, models.DriftModerate, mc.Drift.Level)
	assert.Len(t, mc.Drift.Changes, 2)
	assert.Equal(t, "QQQ", mc.Snapshot.Symbol)
	assert.NotEmpty(t, mc.Spine)
	assert.NotEmpty(t, mc.Headline)
}

func TestMarketContextBuilder_Similarity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		ret := 1.5
		res := models.ResolutionTrend
		_, err := h.archive.Append(ctx, models.ArchiveRecord{
			Symbol: "SPY",
			Date:   start.AddDate(0, 0, i),
			Fingerprint: models.RegimeFingerprint{
				MarketState:    models.StateTrending,
				MarketFriction: models.FrictionLow,
			},
			Forward10dReturn: &ret,
			ResolutionType:   &res,
		})
		require.NoError(t, err)
	}

	mc, err := h.builder.Build(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, 25, mc.Similarity.TotalOccurrences)
	assert.Equal(t, 0.5, mc.Similarity.Confidence)
	assert.Equal(t, 100.0, mc.Similarity.TrendContinuationPct)
	assert.Equal(t, models.DriftNone, mc.Drift.Level)
}

func TestMarketContextBuilder_ArchiveFailuresDegrade(t *testing.T) {
	h := newHarness(t)
	b := NewMarketContextBuilder(h.source, brokenArchive{}, nil, h.metrics, applogger.Nop())

	mc, err := b.Build(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, models.DriftNone, mc.Drift.Level)
	assert.Zero(t, mc.Similarity.TotalOccurrences)
	assert.ElementsMatch(t, []string{"load_fingerprint", "query_similar"}, h.metrics.warnings)
}

func TestClassify_WritesNothing(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	snap, err := o.Classify(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, models.StateTrending, snap.State)
	assert.Equal(t, models.BiasBullish, snap.Bias)
	assert.Empty(t, h.logs(t))

	_, err = o.Classify(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestRunGuard_RejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	locks := cache.NewMemoryCache()
	defer locks.Close()
	a := &scriptedAgent{profile: scriptedProfile("a"), decide: func(models.MarketContext) models.Outcome { return models.Outcome{} }}
	g := NewRunGuard(h.orchestrator(a), locks, time.Minute)

	held, err := locks.TryLock(ctx, cache.Key("lock", "run", "SPY"), time.Minute)
	require.NoError(t, err)
	require.True(t, held)
	_, err = g.RunAll(ctx, "SPY")
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Empty(t, h.logs(t))

	require.NoError(t, locks.Unlock(ctx, cache.Key("lock", "run", "SPY")))
	results, err := g.RunAll(ctx, "SPY")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
