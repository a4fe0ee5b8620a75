package models

import "time"

type MarketState string

const (
	StateTrending   MarketState = "TRENDING"
	StateTransition MarketState = "TRANSITION"
	StateRange      MarketState = "RANGE"
	StateStressed   MarketState = "STRESSED"
)

type Bias string

const (
	BiasBullish Bias = "Bullish"
	BiasBearish Bias = "Bearish"
	BiasNeutral Bias = "Neutral"
)

// Directional reports whether the bias points somewhere.
func (b Bias) Directional() bool { return b == BiasBullish || b == BiasBearish }

type Friction string

const (
	FrictionLow      Friction = "Low"
	FrictionModerate Friction = "Moderate"
	FrictionHigh     Friction = "High"
)

// HorizonState is the trend read for one horizon.
type HorizonState string

const (
	HorizonBullish HorizonState = "Bullish"
	HorizonBearish HorizonState = "Bearish"
	HorizonChoppy  HorizonState = "Choppy"
)

func (h HorizonState) Directional() bool { return h == HorizonBullish || h == HorizonBearish }

type HorizonStates struct {
	Short HorizonState `json:"short"`
	Mid   HorizonState `json:"mid"`
	Long  HorizonState `json:"long"`
}

type VolatilityState string

const (
	VolatilityCompressed VolatilityState = "Compressed"
	VolatilityNormal     VolatilityState = "Normal"
	// VolatilityExpanding is accepted by agents but not produced by the fingerprint.
	VolatilityExpanding VolatilityState = "Expanding"
)

type ConfluenceBand string

const (
	BandLow    ConfluenceBand = "Low"
	BandMedium ConfluenceBand = "Medium"
	BandHigh   ConfluenceBand = "High"
)

type HTFAlignment string

const (
	HTFAligned    HTFAlignment = "Aligned"
	HTFConflicted HTFAlignment = "Conflicted"
	HTFNeutral    HTFAlignment = "Neutral"
)

// ConfluenceResult is the weighted checklist outcome.
type ConfluenceResult struct {
	WeightedScore   float64         `json:"weighted_score"`
	WeightedMax     float64         `json:"weighted_max"`
	NormalizedScore int             `json:"normalized_score"`
	Drivers         []string        `json:"drivers"`
	Gaps            []string        `json:"gaps"`
	Checks          map[string]bool `json:"checks"`
}

// Tradeable reports a normalized score of 9 or more.
func (c ConfluenceResult) Tradeable() bool { return c.NormalizedScore >= 9 }

// RegimeSnapshot is the classified view of one scan. It is not mutated after Classify returns.
type RegimeSnapshot struct {
	Symbol          string           `json:"symbol"`
	Timestamp       time.Time        `json:"timestamp"`
	State           MarketState      `json:"state"`
	Bias            Bias             `json:"bias"`
	Friction        Friction         `json:"friction"`
	FrictionSignal  string           `json:"friction_signal"`
	Confluence      ConfluenceResult `json:"confluence"`
	Horizons        HorizonStates    `json:"horizon_states"`
	BalanceState    BalanceState     `json:"balance_state"`
	VolatilityState VolatilityState  `json:"volatility_state"`
	TouchRank       string           `json:"touch_rank,omitempty"`
	CurrentPrice    float64          `json:"current_price"`
}

// RegimeFingerprint is the categorical projection used for archiving and drift.
type RegimeFingerprint struct {
	MarketState     MarketState     `json:"market_state"`
	MarketFriction  Friction        `json:"market_friction"`
	ConfluenceBand  ConfluenceBand  `json:"confluence_band"`
	BalanceState    BalanceState    `json:"balance_state"`
	TouchRank       string          `json:"touch_rank,omitempty"`
	VolatilityState VolatilityState `json:"volatility_state"`
	HTFAlignment    HTFAlignment    `json:"htf_alignment"`
}

// Drift is the day-over-day severity of fingerprint change.
type Drift string

const (
	// DriftNone means there was no prior fingerprint to compare against.
	DriftNone     Drift = "None"
	DriftStable   Drift = "STABLE"
	DriftMinor    Drift = "MINOR DRIFT"
	DriftModerate Drift = "MODERATE DRIFT"
	DriftMajor    Drift = "MAJOR DRIFT"
)

// DriftChange is one dimension that moved between two fingerprints.
type DriftChange struct {
	Dimension string `json:"dimension"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func (c DriftChange) String() string {
	return c.Dimension + ": " + c.From + " → " + c.To
}

type DriftReport struct {
	Level   Drift         `json:"level"`
	Changes []DriftChange `json:"changes"`
}

// MarketContext bundles what agents read for one symbol in one run.
type MarketContext struct {
	Snapshot    RegimeSnapshot    `json:"snapshot"`
	Fingerprint RegimeFingerprint `json:"fingerprint"`
	Drift       DriftReport       `json:"drift"`
	Similarity  SimilarityStats   `json:"similarity"`
	Spine       string            `json:"spine"`
	Headline    string            `json:"headline"`
}
