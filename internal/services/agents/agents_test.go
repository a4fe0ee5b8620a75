package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	"Corexia/pkg/config"
)

func market(state models.MarketState, friction models.Friction, bias models.Bias) models.MarketContext {
	return models.MarketContext{
		Snapshot: models.RegimeSnapshot{
			Symbol:          "SPY",
			State:           state,
			Friction:        friction,
			Bias:            bias,
			VolatilityState: models.VolatilityNormal,
			BalanceState:    models.BalanceBreakout,
		},
		Drift: models.DriftReport{Level: models.DriftStable},
	}
}

func TestSteward_EndToEndScenario(t *testing.T) {
	agent, err := New(models.KindSteward, StewardProfile())
	require.NoError(t, err)

	mc := market(models.StateTrending, models.FrictionLow, models.BiasBullish)
	mc.Similarity = models.SimilarityStats{Confidence: 0.65, TrendContinuationPct: 60}

	out := agent.Decide(mc)
	require.True(t, out.Proposed())
	assert.Equal(t, models.ActionLong, out.Decision.Action)
	assert.Equal(t, "SPY", out.Decision.Symbol)
	assert.LessOrEqual(t, out.Decision.SizePct, 0.15)
	assert.Equal(t, 0.65, out.Decision.Confidence)
	assert.Equal(t, "Trending bullish with 65% historical support", out.Decision.Rationale)

	mc.Similarity.Confidence = 0.55
	out = agent.Decide(mc)
	assert.True(t, out.Blocked())
	assert.Equal(t, "Historical support insufficient: 55.0%", out.BlockReason)
}

func TestSteward_Rules(t *testing.T) {
	s := &Steward{profile: StewardProfile()}
	sim := models.SimilarityStats{Confidence: 0.8, TrendContinuationPct: 70}

	mc := market(models.StateTransition, models.FrictionLow, models.BiasBullish)
	mc.Similarity = sim
	assert.Equal(t, "State not trending: TRANSITION", s.Decide(mc).BlockReason)

	mc = market(models.StateTrending, models.FrictionLow, models.BiasBullish)
	mc.Similarity = models.SimilarityStats{Confidence: 0.8, TrendContinuationPct: 45}
	assert.Equal(t, "Trend continuation weak: 45.0%", s.Decide(mc).BlockReason)

	mc = market(models.StateTrending, models.FrictionLow, models.BiasNeutral)
	mc.Similarity = sim
	assert.Equal(t, "Directional bias unclear", s.Decide(mc).BlockReason)
}

func TestSteward_IgnoresMedianDirection(t *testing.T) {
	s := &Steward{profile: StewardProfile()}
	mc := market(models.StateTrending, models.FrictionLow, models.BiasBullish)
	mc.Similarity = models.SimilarityStats{Confidence: 0.65, TrendContinuationPct: 60, Median10dReturn: -0.4}

	out := s.Decide(mc)
	require.True(t, out.Proposed())
	assert.Equal(t, models.ActionLong, out.Decision.Action)
}

func TestSteward_MemorySupportFlag(t *testing.T) {
	p := StewardProfile()
	p.Flags = map[models.BehaviorFlag]bool{}
	s := &Steward{profile: p}
	mc := market(models.StateTrending, models.FrictionLow, models.BiasBearish)
	mc.Similarity = models.SimilarityStats{Confidence: 0.2, TrendContinuationPct: 30}

	out := s.Decide(mc)
	require.True(t, out.Proposed(), "history is not consulted without the flag")
	assert.Equal(t, models.ActionShort, out.Decision.Action)

	s = &Steward{profile: StewardProfile()}
	assert.Equal(t, "Historical support insufficient: 20.0%", s.Decide(mc).BlockReason)
}

func TestOperator(t *testing.T) {
	o := &Operator{profile: OperatorProfile()}

	mc := market(models.StateRange, models.FrictionLow, models.BiasBullish)
	mc.Snapshot.VolatilityState = models.VolatilityCompressed
	mc.Similarity = models.SimilarityStats{Confidence: 0.5}
	out := o.Decide(mc)
	require.True(t, out.Proposed(), "breakout from range is allowed")
	assert.Equal(t, "Transition bullish with Compressed volatility", out.Decision.Rationale)
	assert.Equal(t, 0.25, out.Decision.SizePct)

	mc.Snapshot.BalanceState = models.BalanceIn
	assert.Equal(t, "State not suitable: RANGE", o.Decide(mc).BlockReason)

	mc = market(models.StateTransition, models.FrictionLow, models.BiasBearish)
	mc.Similarity = models.SimilarityStats{Confidence: 0.6}
	assert.Equal(t, "Volatility state not compressed: Normal", o.Decide(mc).BlockReason)

	mc.Similarity.Confidence = 0.3
	assert.Equal(t, "Similarity below threshold: 30.0%", o.Decide(mc).BlockReason)
}

func TestHunter(t *testing.T) {
	h := &Hunter{profile: HunterProfile()}

	mc := market(models.StateStressed, models.FrictionHigh, models.BiasNeutral)
	mc.Snapshot.Horizons = models.HorizonStates{Short: models.HorizonChoppy, Mid: models.HorizonBearish, Long: models.HorizonBullish}
	mc.Similarity = models.SimilarityStats{Confidence: 0.4}
	out := h.Decide(mc)
	require.True(t, out.Proposed(), "neutral stress still trades")
	assert.Equal(t, models.ActionShort, out.Decision.Action)
	assert.Equal(t, "Volatility play bearish in STRESSED regime", out.Decision.Rationale)
	assert.InDelta(t, 0.35*0.7, out.Decision.SizePct, 1e-12)

	mc.Snapshot.Horizons = models.HorizonStates{Short: models.HorizonChoppy, Mid: models.HorizonChoppy, Long: models.HorizonChoppy}
	assert.Equal(t, "No directional conviction", h.Decide(mc).BlockReason)

	mc = market(models.StateTransition, models.FrictionLow, models.BiasNeutral)
	mc.Similarity = models.SimilarityStats{Confidence: 0.9}
	assert.Equal(t, "No directional bias in non-stressed environment", h.Decide(mc).BlockReason)

	mc = market(models.StateTrending, models.FrictionLow, models.BiasBullish)
	mc.Similarity = models.SimilarityStats{Confidence: 0.9}
	assert.Equal(t, "Volatility state not suitable for Hunter: Normal", h.Decide(mc).BlockReason)

	mc.Snapshot.VolatilityState = models.VolatilityCompressed
	assert.True(t, h.Decide(mc).Proposed())

	mc.Similarity.Confidence = 0.1
	assert.Equal(t, "Even Hunter requires minimum similarity: 10.0%", h.Decide(mc).BlockReason)
}

func TestHunter_StressBiasWithoutDisagreement(t *testing.T) {
	p := HunterProfile()
	delete(p.Flags, models.FlagAllowDisagreement)
	h := &Hunter{profile: p}

	mixed := models.HorizonStates{Short: models.HorizonBullish, Mid: models.HorizonBearish, Long: models.HorizonBearish}
	assert.Equal(t, models.BiasNeutral, h.stressBias(mixed))

	aligned := models.HorizonStates{Short: models.HorizonBullish, Mid: models.HorizonBullish, Long: models.HorizonBullish}
	assert.Equal(t, models.BiasBullish, h.stressBias(aligned))
}

func TestAllowed(t *testing.T) {
	steward := StewardProfile()

	mc := market(models.StateTrending, models.FrictionLow, models.BiasBullish)
	ok, reason := Allowed(steward, mc)
	assert.True(t, ok)
	assert.Empty(t, reason)

	mc.Drift.Level = models.DriftModerate
	ok, reason = Allowed(steward, mc)
	assert.False(t, ok)
	assert.Equal(t, "Narrative drift blocked: MODERATE DRIFT", reason)

	mc = market(models.StateTrending, models.FrictionHigh, models.BiasBullish)
	ok, reason = Allowed(steward, mc)
	assert.False(t, ok)
	assert.Equal(t, "Market friction blocked: High", reason)

	ok, _ = Allowed(HunterProfile(), mc)
	assert.True(t, ok)
}

func TestAllowed_NoHistoryAndStableAreDifferentInputs(t *testing.T) {
	p := StewardProfile()
	p.AllowedDrift = []models.Drift{models.DriftStable}

	mc := market(models.StateTrending, models.FrictionLow, models.BiasBullish)
	ok, _ := Allowed(p, mc)
	assert.True(t, ok)

	mc.Drift.Level = models.DriftNone
	ok, reason := Allowed(p, mc)
	assert.False(t, ok)
	assert.Equal(t, "Narrative drift blocked: None", reason)
}

func TestSizePosition(t *testing.T) {
	hunter := HunterProfile()

	mc := market(models.StateStressed, models.FrictionHigh, models.BiasBullish)
	mc.Drift.Level = models.DriftMajor
	assert.InDelta(t, 0.2*0.5*0.7, SizePosition(hunter, mc, 0.2), 1e-12)

	// steward does not opt into the drift haircut
	assert.InDelta(t, 0.1*0.7, SizePosition(StewardProfile(), mc, 0.1), 1e-12)

	for _, p := range DefaultProfiles() {
		for _, drift := range []models.Drift{models.DriftNone, models.DriftStable, models.DriftMajor} {
			for _, friction := range []models.Friction{models.FrictionLow, models.FrictionHigh} {
				for _, base := range []float64{0, 0.05, 0.15, 0.35, 0.9, 5} {
					mc := market(models.StateTrending, friction, models.BiasBullish)
					mc.Drift.Level = drift
					size := SizePosition(p, mc, base)
					assert.LessOrEqual(t, size, p.MaxPositionPct)
					assert.LessOrEqual(t, size, base)
				}
			}
		}
	}
}

func TestNew(t *testing.T) {
	for kind, p := range DefaultProfiles() {
		a, err := New(kind, p)
		require.NoError(t, err)
		assert.Equal(t, kind, a.Kind())
		assert.Equal(t, p.ID, a.Profile().ID)
		assert.NotEmpty(t, a.Interpret(market(models.StateRange, models.FrictionLow, models.BiasNeutral)))
	}
	_, err := New("trader", models.AgentProfile{})
	assert.Error(t, err)
}

func TestLoadAgents(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.Enabled = []string{"hunter", "steward"}
	cfg.Agents.Profiles = map[string]config.ProfileOverride{
		"hunter": {MaxPositionPct: 0.2, CooldownAfterLosses: 5},
	}

	profiles, err := LoadAgents(cfg)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, models.KindHunter, profiles[0].Kind)
	assert.Equal(t, 0.2, profiles[0].MaxPositionPct)
	assert.Equal(t, 5, profiles[0].CooldownAfterLosses)
	assert.Equal(t, 0.40, profiles[0].SimilarityThreshold)
	assert.Equal(t, 0.15, profiles[1].MaxPositionPct)

	cfg.Agents.Enabled = []string{"gambler"}
	_, err = LoadAgents(cfg)
	assert.Error(t, err)
}
