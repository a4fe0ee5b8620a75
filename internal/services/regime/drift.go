package regime

import "Corexia/internal/domain/models"

// DetectDrift compares today's fingerprint with yesterday's on state,
// friction, balance and volatility. A nil yesterday yields DriftNone, which
// is not the same as STABLE.
func DetectDrift(today models.RegimeFingerprint, yesterday *models.RegimeFingerprint) models.DriftReport {
	if yesterday == nil {
		return models.DriftReport{Level: models.DriftNone, Changes: []models.DriftChange{}}
	}

	changes := make([]models.DriftChange, 0, 4)
	diff := func(dim, from, to string) {
		if from != to {
			changes = append(changes, models.DriftChange{Dimension: dim, From: from, To: to})
		}
	}
	diff("State shift", string(yesterday.MarketState), string(today.MarketState))
	diff("Friction change", string(yesterday.MarketFriction), string(today.MarketFriction))
	diff("Structure change", string(yesterday.BalanceState), string(today.BalanceState))
	diff("Volatility regime change", string(yesterday.VolatilityState), string(today.VolatilityState))

	return models.DriftReport{Level: severity(len(changes)), Changes: changes}
}

func severity(n int) models.Drift {
	switch {
	case n >= 3:
		return models.DriftMajor
	case n == 2:
		return models.DriftModerate
	case n == 1:
		return models.DriftMinor
	default:
		return models.DriftStable
	}
}
