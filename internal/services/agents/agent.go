package agents

import (
	"fmt"
	"math"

	"Corexia/internal/domain/models"
	"Corexia/internal/domain/service"
)

// Allowed is the drift and friction gate every agent passes through before
// its own rules run. It is a plain function of the profile so no agent
// implementation can weaken it.
func Allowed(p models.AgentProfile, mc models.MarketContext) (bool, string) {
	if !p.DriftAllowed(mc.Drift.Level) {
		return false, fmt.Sprintf("Narrative drift blocked: %s", mc.Drift.Level)
	}
	if !p.FrictionAllowed(mc.Snapshot.Friction) {
		return false, fmt.Sprintf("Market friction blocked: %s", mc.Snapshot.Friction)
	}
	return true, ""
}

// SizePosition scales base down for major drift (when the profile opts in)
// and for high friction, then clamps to the profile maximum. It never sizes up.
func SizePosition(p models.AgentProfile, mc models.MarketContext, base float64) float64 {
	size := base
	if mc.Drift.Level == models.DriftMajor && p.Has(models.FlagSizeDownInMajorDrift) {
		size *= 0.5
	}
	if mc.Snapshot.Friction == models.FrictionHigh {
		size *= 0.7
	}
	return math.Max(0, math.Min(size, p.MaxPositionPct))
}

// New builds the agent for kind.
func New(kind models.AgentKind, p models.AgentProfile) (service.Agent, error) {
	switch kind {
	case models.KindSteward:
		return &Steward{profile: p}, nil
	case models.KindOperator:
		return &Operator{profile: p}, nil
	case models.KindHunter:
		return &Hunter{profile: p}, nil
	default:
		return nil, fmt.Errorf("unknown agent kind %q", kind)
	}
}

func sideFor(b models.Bias) (models.Action, bool) {
	switch b {
	case models.BiasBullish:
		return models.ActionLong, true
	case models.BiasBearish:
		return models.ActionShort, true
	default:
		return "", false
	}
}

func block(format string, args ...interface{}) models.Outcome {
	return models.Outcome{BlockReason: fmt.Sprintf(format, args...)}
}

func propose(p models.AgentProfile, mc models.MarketContext, side models.Action, rationale string) models.Outcome {
	return models.Outcome{Decision: &models.Decision{
		Action:     side,
		Symbol:     mc.Snapshot.Symbol,
		SizePct:    SizePosition(p, mc, p.MaxPositionPct),
		Rationale:  rationale,
		Confidence: mc.Similarity.Confidence,
	}}
}
