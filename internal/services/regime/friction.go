package regime

import "Corexia/internal/domain/models"

const (
	frictionLowSignal      = "Structure is clean. Directional control is clear."
	frictionModerateSignal = "Structure is mixed. Demand confirmation and tighter structure."
	frictionHighSignal     = "Overlapping structure. Expect chop and protect capital."
)

// AssessFriction accumulates friction points and maps them to a level with
// its fixed rationale. Absent fields count as the condition not being met,
// except that an unreported macro or MA regime is treated as unclear.
func AssessFriction(b *models.IndicatorBundle, normalizedConfluence int) (models.Friction, string, int) {
	if b == nil {
		b = &models.IndicatorBundle{}
	}
	points := 0

	switch b.Regime.MacroOr(models.MARegimeUnknown) {
	case models.MARegimeUnknown, "Transitional":
		points++
	}
	switch b.MASystem.RegimeOr(models.MARegimeUnknown) {
	case models.MARegimeNeutral, models.MARegimeUnknown:
		points++
	}

	t := b.Technical
	balance := t.Balance()
	if balance == models.BalanceIn {
		points += 2
	}
	if t != nil && models.BoolOr(t.BalanceZone, false) && balance.Extended() {
		points++
	}
	if t != nil && models.BoolOr(t.UnfilledGaps, false) {
		points++
	}
	if b.MarketMemory != nil && models.BoolOr(b.MarketMemory.VIXExtreme, false) {
		points++
	}
	if normalizedConfluence <= 4 {
		points++
	}

	switch {
	case points <= 2:
		return models.FrictionLow, frictionLowSignal, points
	case points <= 4:
		return models.FrictionModerate, frictionModerateSignal, points
	default:
		return models.FrictionHigh, frictionHighSignal, points
	}
}
