package regime

import "Corexia/internal/domain/models"

// timeframeState reads one timeframe: balance overrides trend, then the MA regime decides.
func timeframeState(r models.TimeframeReading) models.HorizonState {
	if models.BalanceState(models.StringOr(r.BalanceState, "")) == models.BalanceIn {
		return models.HorizonChoppy
	}
	switch models.StringOr(r.MARegime, "") {
	case models.MARegimeBull:
		return models.HorizonBullish
	case models.MARegimeBear:
		return models.HorizonBearish
	default:
		return models.HorizonChoppy
	}
}

// combine is unanimous-or-Choppy; an empty input is Choppy.
func combine(states []models.HorizonState) models.HorizonState {
	if len(states) == 0 {
		return models.HorizonChoppy
	}
	first := states[0]
	if !first.Directional() {
		return models.HorizonChoppy
	}
	for _, s := range states[1:] {
		if s != first {
			return models.HorizonChoppy
		}
	}
	return first
}

func collect(b *models.IndicatorBundle, tfs ...models.Timeframe) []models.HorizonState {
	out := make([]models.HorizonState, 0, len(tfs))
	for _, tf := range tfs {
		if r, ok := b.Reading(tf); ok {
			out = append(out, timeframeState(r))
		}
	}
	return out
}

// HorizonStates derives short (90M+4H), mid (1D) and long (1W) trend agreement.
// Missing or failed timeframes are skipped.
func HorizonStates(b *models.IndicatorBundle) models.HorizonStates {
	return models.HorizonStates{
		Short: combine(collect(b, models.TF90M, models.TF4H)),
		Mid:   combine(collect(b, models.TF1D)),
		Long:  combine(collect(b, models.TF1W)),
	}
}
