package agents

import (
	"fmt"

	"Corexia/internal/domain/models"
	"Corexia/pkg/config"
)

// driftUpTo returns the drift levels from None through limit, in severity order.
func driftUpTo(limit models.Drift) []models.Drift {
	levels := []models.Drift{
		models.DriftNone, models.DriftStable, models.DriftMinor, models.DriftModerate, models.DriftMajor,
	}
	for i, d := range levels {
		if d == limit {
			return levels[:i+1]
		}
	}
	return levels
}

func flags(fs ...models.BehaviorFlag) map[models.BehaviorFlag]bool {
	m := make(map[models.BehaviorFlag]bool, len(fs))
	for _, f := range fs {
		m[f] = true
	}
	return m
}

// StewardProfile preserves capital and compounds slowly.
func StewardProfile() models.AgentProfile {
	return models.AgentProfile{
		ID:                  string(models.KindSteward),
		Kind:                models.KindSteward,
		Objective:           "Preserve capital, compound slowly",
		AllowedDrift:        driftUpTo(models.DriftMinor),
		AllowedFriction:     []models.Friction{models.FrictionLow, models.FrictionModerate},
		MaxPositionPct:      0.15,
		MaxPositions:        2,
		MaxDrawdownPct:      0.10,
		DailyLossLimitPct:   0.01,
		SimilarityThreshold: 0.60,
		Flags:               flags(models.FlagRequireMemorySupport),
	}
}

// OperatorProfile exploits regime transitions.
func OperatorProfile() models.AgentProfile {
	return models.AgentProfile{
		ID:                  string(models.KindOperator),
		Kind:                models.KindOperator,
		Objective:           "Exploit regime transitions",
		AllowedDrift:        driftUpTo(models.DriftModerate),
		AllowedFriction:     []models.Friction{models.FrictionLow, models.FrictionModerate},
		MaxPositionPct:      0.25,
		MaxPositions:        4,
		MaxDrawdownPct:      0.15,
		DailyLossLimitPct:   0.02,
		CooldownAfterLosses: 2,
		SimilarityThreshold: 0.50,
		Flags:               flags(models.FlagRequireVolCompression, models.FlagAllowBalanceIfBreaking),
	}
}

// HunterProfile maximizes return velocity.
func HunterProfile() models.AgentProfile {
	return models.AgentProfile{
		ID:                  string(models.KindHunter),
		Kind:                models.KindHunter,
		Objective:           "Maximize return velocity",
		AllowedDrift:        driftUpTo(models.DriftMajor),
		AllowedFriction:     []models.Friction{models.FrictionLow, models.FrictionModerate, models.FrictionHigh},
		MaxPositionPct:      0.35,
		MaxPositions:        5,
		MaxDrawdownPct:      0.20,
		DailyLossLimitPct:   0.03,
		CooldownAfterLosses: 3,
		SimilarityThreshold: 0.40,
		Flags:               flags(models.FlagAllowDisagreement, models.FlagSizeDownInMajorDrift),
	}
}

// DefaultProfiles returns the built-in profiles keyed by kind.
func DefaultProfiles() map[models.AgentKind]models.AgentProfile {
	return map[models.AgentKind]models.AgentProfile{
		models.KindSteward:  StewardProfile(),
		models.KindOperator: OperatorProfile(),
		models.KindHunter:   HunterProfile(),
	}
}

// LoadAgents builds the enabled agents once, applying configured overrides.
// The returned profiles are copies; nothing mutates them afterwards.
func LoadAgents(cfg *config.Config) ([]models.AgentProfile, error) {
	defaults := DefaultProfiles()
	out := make([]models.AgentProfile, 0, len(cfg.Agents.Enabled))
	for _, name := range cfg.Agents.Enabled {
		kind := models.AgentKind(name)
		p, ok := defaults[kind]
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", name)
		}
		if o, ok := cfg.Agents.Profiles[name]; ok {
			p = applyOverride(p, o)
		}
		out = append(out, p)
	}
	return out, nil
}

func applyOverride(p models.AgentProfile, o config.ProfileOverride) models.AgentProfile {
	if o.MaxPositionPct > 0 {
		p.MaxPositionPct = o.MaxPositionPct
	}
	if o.MaxPositions > 0 {
		p.MaxPositions = o.MaxPositions
	}
	if o.MaxDrawdownPct > 0 {
		p.MaxDrawdownPct = o.MaxDrawdownPct
	}
	if o.DailyLossLimitPct > 0 {
		p.DailyLossLimitPct = o.DailyLossLimitPct
	}
	if o.CooldownAfterLosses > 0 {
		p.CooldownAfterLosses = o.CooldownAfterLosses
	}
	if o.SimilarityThreshold > 0 {
		p.SimilarityThreshold = o.SimilarityThreshold
	}
	return p
}
