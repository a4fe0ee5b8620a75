package agents

import (
	"fmt"
	"strings"

	"Corexia/internal/domain/models"
)

// Hunter trades volatility: compression, stress and transitions, at any friction.
type Hunter struct {
	profile models.AgentProfile
}

func (h *Hunter) Kind() models.AgentKind       { return models.KindHunter }
func (h *Hunter) Profile() models.AgentProfile { return h.profile }

func (h *Hunter) Interpret(mc models.MarketContext) string {
	snap := mc.Snapshot
	switch {
	case snap.VolatilityState == models.VolatilityCompressed:
		return "Volatility compressed - opportunity for fast directional move"
	case snap.State == models.StateStressed:
		return "Structural tension - high volatility environment active"
	case snap.State == models.StateTransition && snap.Friction == models.FrictionHigh:
		return "Chaos in formation - acceptable operating environment"
	case snap.State == models.StateTrending:
		return "Trend established - momentum play available"
	default:
		return "Low volatility environment - reduced opportunity"
	}
}

func (h *Hunter) Decide(mc models.MarketContext) models.Outcome {
	snap, sim := mc.Snapshot, mc.Similarity

	if sim.Confidence < h.profile.SimilarityThreshold {
		return block("Even Hunter requires minimum similarity: %.1f%%", sim.Confidence*100)
	}

	trigger := snap.VolatilityState == models.VolatilityCompressed ||
		snap.State == models.StateStressed || snap.State == models.StateTransition
	if !trigger {
		return block("Volatility state not suitable for Hunter: %s", snap.VolatilityState)
	}

	bias := snap.Bias
	if !bias.Directional() {
		if snap.State != models.StateStressed {
			return block("No directional bias in non-stressed environment")
		}
		bias = h.stressBias(snap.Horizons)
	}
	side, ok := sideFor(bias)
	if !ok {
		return block("No directional conviction")
	}

	rationale := fmt.Sprintf("Volatility play %s in %s regime", strings.ToLower(string(bias)), snap.State)
	return propose(h.profile, mc, side, rationale)
}

// stressBias picks a direction for a neutral stressed snapshot from the
// first directional horizon, shortest first. Horizons may disagree with each
// other only when the profile allows disagreement.
func (h *Hunter) stressBias(hs models.HorizonStates) models.Bias {
	if !h.profile.Has(models.FlagAllowDisagreement) {
		if hs.Short == hs.Mid && hs.Mid == hs.Long && hs.Short.Directional() {
			return models.Bias(hs.Short)
		}
		return models.BiasNeutral
	}
	for _, s := range []models.HorizonState{hs.Short, hs.Mid, hs.Long} {
		if s.Directional() {
			return models.Bias(s)
		}
	}
	return models.BiasNeutral
}
