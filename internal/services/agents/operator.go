package agents

import (
	"fmt"
	"strings"

	"Corexia/internal/domain/models"
)

// Operator trades transitions and early trends out of compressed volatility.
type Operator struct {
	profile models.AgentProfile
}

func (o *Operator) Kind() models.AgentKind       { return models.KindOperator }
func (o *Operator) Profile() models.AgentProfile { return o.profile }

func (o *Operator) Interpret(mc models.MarketContext) string {
	snap := mc.Snapshot
	switch {
	case snap.State == models.StateTransition:
		return "Regime shift detected - transition opportunity available"
	case snap.VolatilityState == models.VolatilityCompressed && snap.State != models.StateRange:
		return "Volatility compression with directional structure - expansion likely"
	case snap.State == models.StateTrending && mc.Similarity.Confidence >= o.profile.SimilarityThreshold:
		return "Early trend with historical precedent - opportunistic entry"
	case snap.State == models.StateStressed:
		return "Volatility elevated - waiting for regime clarity"
	default:
		return "No transition signal active"
	}
}

func (o *Operator) Decide(mc models.MarketContext) models.Outcome {
	snap, sim := mc.Snapshot, mc.Similarity

	if sim.Confidence < o.profile.SimilarityThreshold {
		return block("Similarity below threshold: %.1f%%", sim.Confidence*100)
	}

	if snap.State != models.StateTransition && snap.State != models.StateTrending {
		breaking := o.profile.Has(models.FlagAllowBalanceIfBreaking) && snap.BalanceState.Extended()
		if !breaking {
			return block("State not suitable: %s", snap.State)
		}
	}

	if o.profile.Has(models.FlagRequireVolCompression) &&
		snap.VolatilityState != models.VolatilityCompressed && snap.VolatilityState != models.VolatilityExpanding {
		return block("Volatility state not compressed: %s", snap.VolatilityState)
	}

	side, ok := sideFor(snap.Bias)
	if !ok {
		return block("Directional bias unclear")
	}

	rationale := fmt.Sprintf("Transition %s with %s volatility", strings.ToLower(string(snap.Bias)), snap.VolatilityState)
	return propose(o.profile, mc, side, rationale)
}
