package agents

import (
	"fmt"
	"strings"

	"Corexia/internal/domain/models"
)

// Steward trades only established trends with strong historical support.
type Steward struct {
	profile models.AgentProfile
}

func (s *Steward) Kind() models.AgentKind       { return models.KindSteward }
func (s *Steward) Profile() models.AgentProfile { return s.profile }

func (s *Steward) Interpret(mc models.MarketContext) string {
	snap := mc.Snapshot
	switch {
	case snap.Friction == models.FrictionHigh:
		return "Environment too hostile for capital deployment"
	case snap.State == models.StateRange:
		return "Waiting for directional control to establish"
	case snap.State == models.StateTrending && mc.Similarity.Confidence >= s.profile.SimilarityThreshold:
		return "Stable regime with historical support - conditions acceptable"
	case snap.State == models.StateTransition:
		return "Regime forming - premature to commit capital"
	case snap.State == models.StateStressed:
		return "Structural tension elevated - defensive posture required"
	default:
		return "No clear advantage detected"
	}
}

func (s *Steward) Decide(mc models.MarketContext) models.Outcome {
	snap, sim := mc.Snapshot, mc.Similarity

	memory := s.profile.Has(models.FlagRequireMemorySupport)
	if memory && sim.Confidence < s.profile.SimilarityThreshold {
		return block("Historical support insufficient: %.1f%%", sim.Confidence*100)
	}
	if snap.State != models.StateTrending {
		return block("State not trending: %s", snap.State)
	}
	if memory && sim.TrendContinuationPct < 50 {
		return block("Trend continuation weak: %.1f%%", sim.TrendContinuationPct)
	}
	side, ok := sideFor(snap.Bias)
	if !ok {
		return block("Directional bias unclear")
	}

	rationale := fmt.Sprintf("Trending %s with %.0f%% historical support",
		strings.ToLower(string(snap.Bias)), sim.Confidence*100)
	return propose(s.profile, mc, side, rationale)
}
