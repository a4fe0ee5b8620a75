package regime

import "Corexia/internal/domain/models"

// Band buckets a normalized confluence score.
func Band(score int) models.ConfluenceBand {
	switch {
	case score >= 9:
		return models.BandHigh
	case score >= 6:
		return models.BandMedium
	default:
		return models.BandLow
	}
}

// VolatilityOf is Compressed while a Bollinger squeeze is active.
func VolatilityOf(b *models.IndicatorBundle) models.VolatilityState {
	if b != nil && b.Technical.Squeeze() {
		return models.VolatilityCompressed
	}
	return models.VolatilityNormal
}

func Alignment(h models.HorizonStates) models.HTFAlignment {
	switch {
	case h.Long == h.Mid && h.Long.Directional():
		return models.HTFAligned
	case h.Long != h.Mid:
		return models.HTFConflicted
	default:
		return models.HTFNeutral
	}
}

// Fingerprint projects a snapshot onto its categorical tuple.
func Fingerprint(s models.RegimeSnapshot) models.RegimeFingerprint {
	return models.RegimeFingerprint{
		MarketState:     s.State,
		MarketFriction:  s.Friction,
		ConfluenceBand:  Band(s.Confluence.NormalizedScore),
		BalanceState:    s.BalanceState,
		TouchRank:       s.TouchRank,
		VolatilityState: s.VolatilityState,
		HTFAlignment:    Alignment(s.Horizons),
	}
}
