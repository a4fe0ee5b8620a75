package models

import "time"

// Intent values recorded on the decision log for non-trading branches.
const (
	IntentGateBlocked     = "Blocked by drift/friction gate"
	IntentDecisionBlocked = "Blocked by decision logic"
	IntentAbstained       = "Abstained"
	IntentFailed          = "Cycle failed"
)

// Branch names the terminal step an agent cycle ended on.
type Branch string

const (
	BranchGateBlocked     Branch = "gate_blocked"
	BranchDecisionBlocked Branch = "decision_blocked"
	BranchAbstained       Branch = "abstained"
	BranchRiskBlocked     Branch = "risk_blocked"
	BranchExecuted        Branch = "executed"
	BranchFailed          Branch = "failed"
)

// DecisionLog is the audit record written once per agent cycle.
type DecisionLog struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	AgentID        string    `json:"agent_id"`
	Symbol         string    `json:"symbol"`
	Timestamp      time.Time `json:"timestamp"`
	Branch         Branch    `json:"branch"`
	MarketState    string    `json:"market_state"`
	Friction       string    `json:"friction"`
	Drift          string    `json:"drift"`
	MarketSpine    string    `json:"market_spine"`
	Interpretation string    `json:"interpretation"`
	Intent         string    `json:"intent"`
	ProposedAction string    `json:"proposed_action"`
	BlockedReason  string    `json:"blocked_reason"`
	Confidence     float64   `json:"confidence"`
	SizePct        float64   `json:"size_pct"`
}

// CycleResult is what one agent cycle returns to its caller.
type CycleResult struct {
	Log      DecisionLog `json:"log"`
	Decision *Decision   `json:"decision,omitempty"`
	Position *Position   `json:"position,omitempty"`
	Err      string      `json:"error,omitempty"`
}
