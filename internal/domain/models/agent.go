package models

import "time"

// AgentKind names one of the three rule sets.
type AgentKind string

const (
	KindSteward  AgentKind = "steward"
	KindOperator AgentKind = "operator"
	KindHunter   AgentKind = "hunter"
)

// BehaviorFlag toggles optional rules inside an agent's decision logic.
type BehaviorFlag string

const (
	FlagRequireMemorySupport   BehaviorFlag = "require_memory_support"
	FlagRequireVolCompression  BehaviorFlag = "require_vol_compression"
	FlagAllowBalanceIfBreaking BehaviorFlag = "allow_balance_if_breaking"
	FlagAllowDisagreement      BehaviorFlag = "allow_disagreement"
	FlagSizeDownInMajorDrift   BehaviorFlag = "size_down_in_major_drift"
)

// AgentProfile is the static configuration of an agent. Limits are fractions of equity.
type AgentProfile struct {
	ID                  string                `json:"id"`
	Kind                AgentKind             `json:"kind"`
	Objective           string                `json:"objective"`
	AllowedDrift        []Drift               `json:"allowed_drift"`
	AllowedFriction     []Friction            `json:"allowed_friction"`
	MaxPositionPct      float64               `json:"max_position_pct"`
	MaxPositions        int                   `json:"max_positions"`
	MaxDrawdownPct      float64               `json:"max_drawdown_pct"`
	DailyLossLimitPct   float64               `json:"daily_loss_limit_pct"`
	CooldownAfterLosses int                   `json:"cooldown_after_losses"`
	SimilarityThreshold float64               `json:"similarity_threshold"`
	Flags               map[BehaviorFlag]bool `json:"flags"`
}

// Has reports whether the behavior flag is set.
func (p AgentProfile) Has(f BehaviorFlag) bool { return p.Flags[f] }

func (p AgentProfile) DriftAllowed(d Drift) bool {
	for _, a := range p.AllowedDrift {
		if a == d {
			return true
		}
	}
	return false
}

func (p AgentProfile) FrictionAllowed(f Friction) bool {
	for _, a := range p.AllowedFriction {
		if a == f {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionFlat  Action = "FLAT"
)

// Decision is a proposed sized trade.
type Decision struct {
	Action     Action  `json:"action"`
	Symbol     string  `json:"symbol"`
	SizePct    float64 `json:"size_pct"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// Outcome is the three-way result of an agent's decide step.
type Outcome struct {
	Decision    *Decision `json:"decision,omitempty"`
	BlockReason string    `json:"block_reason,omitempty"`
}

// Proposed reports whether the agent produced a trade.
func (o Outcome) Proposed() bool { return o.Decision != nil }

// Blocked reports an explicit rule failure.
func (o Outcome) Blocked() bool { return o.Decision == nil && o.BlockReason != "" }

// Abstained reports a voluntary pass with no reason.
func (o Outcome) Abstained() bool { return o.Decision == nil && o.BlockReason == "" }

// RiskVerdict is computed per decision attempt and never cached.
type RiskVerdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// RiskPassed is the only reason a passing verdict carries.
const RiskPassed = "Passed"

type AccountHealth string

const (
	HealthOK       AccountHealth = "OK"
	HealthWarning  AccountHealth = "WARNING"
	HealthCritical AccountHealth = "CRITICAL"
)

// AgentStatus is the externally reported view of one agent.
type AgentStatus struct {
	Profile        AgentProfile      `json:"profile"`
	Health         AccountHealth     `json:"health"`
	OpenPositions  []Position        `json:"open_positions"`
	Today          *DailyPerformance `json:"today,omitempty"`
	UnrealizedPnL  float64           `json:"unrealized_pnl_pct"`
	LastDecisionAt *time.Time        `json:"last_decision_at,omitempty"`
}
