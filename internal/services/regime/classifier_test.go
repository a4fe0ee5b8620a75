package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"Corexia/internal/domain/models"
)

func bullishHTF() []bundleOpt {
	return []bundleOpt{withTF(models.TF1W, "Bull"), withTF(models.TF1D, "Bull")}
}

func TestPrimaryState(t *testing.T) {
	tests := []struct {
		name      string
		opts      []bundleOpt
		wantState models.MarketState
		wantBias  models.Bias
	}{
		{
			name: "stress outranks a simultaneous trend",
			opts: append(bullishHTF(),
				withTouch("Fourth touch"), withMA("Bull", "None"), withBalance(models.BalanceBreakout)),
			wantState: models.StateStressed,
			wantBias:  models.BiasBullish,
		},
		{
			name:      "climax on breakdown is stress",
			opts:      []bundleOpt{withClimax(), withBalance(models.BalanceBreakdown)},
			wantState: models.StateStressed,
			wantBias:  models.BiasBearish,
		},
		{
			name:      "fatigue inside balance is neutral stress",
			opts:      []bundleOpt{withTouch("Fourth+ touch"), withBalance(models.BalanceIn)},
			wantState: models.StateStressed,
			wantBias:  models.BiasNeutral,
		},
		{
			name:      "climax without extension is not stress",
			opts:      []bundleOpt{withClimax(), withBalance(models.BalanceIn)},
			wantState: models.StateRange,
			wantBias:  models.BiasNeutral,
		},
		{
			name:      "aligned extended trend",
			opts:      append(bullishHTF(), withMA("Bull", "None"), withBalance(models.BalanceBreakout)),
			wantState: models.StateTrending,
			wantBias:  models.BiasBullish,
		},
		{
			name: "bear trend takes bias from the MA regime",
			opts: []bundleOpt{withTF(models.TF1W, "Bear"), withTF(models.TF1D, "Bear"),
				withMA("Bear", "None"), withBalance(models.BalanceBreakdown)},
			wantState: models.StateTrending,
			wantBias:  models.BiasBearish,
		},
		{
			name:      "aligned but not extended is not trending",
			opts:      append(bullishHTF(), withMA("Bull", "None")),
			wantState: models.StateRange,
			wantBias:  models.BiasNeutral,
		},
		{
			name:      "short crossover",
			opts:      []bundleOpt{withMA("Bull", "Short")},
			wantState: models.StateTransition,
			wantBias:  models.BiasBearish,
		},
		{
			name:      "exit signal falls back to MA regime",
			opts:      []bundleOpt{withMA("Bear", "Exit Long")},
			wantState: models.StateTransition,
			wantBias:  models.BiasBearish,
		},
		{
			name: "horizon conflict while extended",
			opts: []bundleOpt{withTF(models.TF1W, "Bull"), withTF(models.TF1D, "Bear"),
				withMA("Neutral", "None"), withBalance(models.BalanceBreakout)},
			wantState: models.StateTransition,
			wantBias:  models.BiasNeutral,
		},
		{
			name:      "empty bundle defaults to range",
			wantState: models.StateRange,
			wantBias:  models.BiasNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBundle(tt.opts...)
			state, bias := PrimaryState(b, HorizonStates(b))
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantBias, bias)
		})
	}
}

func TestPrimaryState_NilBundle(t *testing.T) {
	state, bias := PrimaryState(nil, models.HorizonStates{})
	assert.Equal(t, models.StateRange, state)
	assert.Equal(t, models.BiasNeutral, bias)
}

func TestHorizonStates(t *testing.T) {
	b := newBundle(withTF(models.TF90M, "Bull"), withTF(models.TF4H, "Bull"), withTF(models.TF1D, "Bear"))
	h := HorizonStates(b)
	assert.Equal(t, models.HorizonBullish, h.Short)
	assert.Equal(t, models.HorizonBearish, h.Mid)
	assert.Equal(t, models.HorizonChoppy, h.Long, "missing weekly is choppy")

	b = newBundle(withTF(models.TF90M, "Bull"), withTFError(models.TF4H))
	assert.Equal(t, models.HorizonBullish, HorizonStates(b).Short, "failed timeframe is skipped")

	b = newBundle(withTF(models.TF90M, "Bull"), withTF(models.TF4H, "Bear"))
	assert.Equal(t, models.HorizonChoppy, HorizonStates(b).Short)

	b = newBundle()
	b.Timeframes[models.TF1D] = models.TimeframeReading{
		MARegime:     models.Str("Bull"),
		BalanceState: models.Str(string(models.BalanceIn)),
	}
	assert.Equal(t, models.HorizonChoppy, HorizonStates(b).Mid, "balance overrides trend")
}

func TestClassify(t *testing.T) {
	asOf := time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC)
	b := newBundle(append(bullishHTF(),
		withMA("Bull", "None"), withMacro("Risk-On"), withBalance(models.BalanceBreakout), withSqueeze())...)
	b.AsOf = asOf
	b.CurrentPrice = 512.4

	snap := Classify(b)

	assert.Equal(t, "SPY", snap.Symbol)
	assert.Equal(t, asOf, snap.Timestamp)
	assert.Equal(t, models.StateTrending, snap.State)
	assert.Equal(t, models.BiasBullish, snap.Bias)
	assert.Equal(t, models.VolatilityCompressed, snap.VolatilityState)
	assert.Equal(t, models.BalanceBreakout, snap.BalanceState)
	assert.Equal(t, 512.4, snap.CurrentPrice)
	// htf_structure and space_vacuum score 2 of 12, so sparse confluence adds one point
	assert.Equal(t, 2, snap.Confluence.NormalizedScore)
	assert.Equal(t, models.FrictionLow, snap.Friction)
}

func TestClassify_DoesNotMutateBundle(t *testing.T) {
	b := newBundle(withBalance(models.BalanceIn))
	before := *b.Technical.Structure.BalanceState
	_ = Classify(b)
	assert.Equal(t, before, *b.Technical.Structure.BalanceState)
	assert.Nil(t, b.MASystem)
}
