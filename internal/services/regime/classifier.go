package regime

import (
	"time"

	"Corexia/internal/domain/models"
)

// PrimaryState applies the four-state machine in fixed priority:
// STRESSED, TRENDING, TRANSITION, then RANGE. Stress wins even when trend
// conditions hold at the same time.
func PrimaryState(b *models.IndicatorBundle, h models.HorizonStates) (models.MarketState, models.Bias) {
	if b == nil {
		b = &models.IndicatorBundle{}
	}
	t := b.Technical
	balance := t.Balance()
	extended := balance.Extended()
	maRegime := b.MASystem.RegimeOr(models.MARegimeNeutral)
	signal := b.MASystem.SignalOr(models.SignalNone)

	if t.Fatigued() || (t.ClimaxDetected() && extended) {
		return models.StateStressed, breakoutBias(balance)
	}

	htfAligned := h.Long == h.Mid && h.Long.Directional()
	if htfAligned && directionalRegime(maRegime) && extended {
		return models.StateTrending, regimeBias(maRegime)
	}

	crossover := signal == models.SignalLong || signal == models.SignalShort ||
		signal == models.SignalExitLong || signal == models.SignalExitShort
	if crossover || (h.Long != h.Mid && extended) {
		switch {
		case signal == models.SignalLong:
			return models.StateTransition, models.BiasBullish
		case signal == models.SignalShort:
			return models.StateTransition, models.BiasBearish
		default:
			return models.StateTransition, regimeBias(maRegime)
		}
	}

	return models.StateRange, models.BiasNeutral
}

func directionalRegime(r string) bool {
	return r == models.MARegimeBull || r == models.MARegimeBear
}

func regimeBias(r string) models.Bias {
	switch r {
	case models.MARegimeBull:
		return models.BiasBullish
	case models.MARegimeBear:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}

func breakoutBias(s models.BalanceState) models.Bias {
	switch s {
	case models.BalanceBreakout:
		return models.BiasBullish
	case models.BalanceBreakdown:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}

// Classify turns one bundle into a snapshot. It never fails: absent data
// degrades to false, Neutral or Choppy. The bundle is not modified.
func Classify(b *models.IndicatorBundle) models.RegimeSnapshot {
	if b == nil {
		b = &models.IndicatorBundle{}
	}
	confluence := ScoreConfluence(b)
	horizons := HorizonStates(b)
	state, bias := PrimaryState(b, horizons)
	friction, signal, _ := AssessFriction(b, confluence.NormalizedScore)

	ts := b.AsOf
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return models.RegimeSnapshot{
		Symbol:          b.Symbol,
		Timestamp:       ts,
		State:           state,
		Bias:            bias,
		Friction:        friction,
		FrictionSignal:  signal,
		Confluence:      confluence,
		Horizons:        horizons,
		BalanceState:    b.Technical.Balance(),
		VolatilityState: VolatilityOf(b),
		TouchRank:       b.Technical.Touch(),
		CurrentPrice:    b.CurrentPrice,
	}
}
