package models

import (
	"strings"
	"time"
)

// Optional fields in indicator records are pointers: nil means the indicator
// did not report the value, and every accessor below resolves nil to a
// documented default so classification never branches on presence.

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Str returns a pointer to v.
func Str(v string) *string { return &v }

// BoolOr dereferences p, falling back to def when p is nil.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// StringOr dereferences p, falling back to def when p is nil or empty.
func StringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// BalanceState is the position of price relative to its balance zone.
type BalanceState string

const (
	BalanceNone      BalanceState = ""
	BalanceIn        BalanceState = "in_balance"
	BalanceBreakout  BalanceState = "breakout_up"
	BalanceBreakdown BalanceState = "breakdown_down"
)

// Extended reports whether price has left balance in either direction.
func (b BalanceState) Extended() bool {
	return b == BalanceBreakout || b == BalanceBreakdown
}

// MA regime and crossover values reported by the moving-average system.
const (
	MARegimeBull    = "Bull"
	MARegimeBear    = "Bear"
	MARegimeNeutral = "Neutral"
	MARegimeUnknown = "Unknown"

	SignalLong      = "Long"
	SignalShort     = "Short"
	SignalExitLong  = "Exit Long"
	SignalExitShort = "Exit Short"
	SignalNone      = "None"
)

type PatternFlags struct {
	TwoB       *bool `json:"2b,omitempty"`
	DivingDuck *bool `json:"diving_duck,omitempty"`
	Pop        *bool `json:"pop,omitempty"`
}

type StructureReading struct {
	BalanceState *string `json:"balance_state,omitempty"`
}

type VolumeReading struct {
	ClimaxDetected *bool `json:"climax_detected,omitempty"`
}

// TechnicalLayer holds price-structure, pattern and volume flags for the primary timeframe.
type TechnicalLayer struct {
	TrendlineHit     *bool            `json:"trendline_hit,omitempty"`
	Patterns         PatternFlags     `json:"patterns"`
	UnfilledGaps     *bool            `json:"unfilled_gaps,omitempty"`
	VolumeClimax     *bool            `json:"volume_climax,omitempty"`
	Curvature        *bool            `json:"curvature,omitempty"`
	BalanceZone      *bool            `json:"balance_zone,omitempty"`
	StophuntComplete *bool            `json:"stophunt_complete,omitempty"`
	Vacuum           *bool            `json:"vacuum,omitempty"`
	BollingerSqueeze *bool            `json:"bollinger_squeeze,omitempty"`
	Structure        StructureReading `json:"structure"`
	Volume           VolumeReading    `json:"volume"`
	TouchRank        *string          `json:"touch_rank,omitempty"`
}

func (t *TechnicalLayer) Balance() BalanceState {
	if t == nil {
		return BalanceNone
	}
	return BalanceState(StringOr(t.Structure.BalanceState, ""))
}

func (t *TechnicalLayer) Squeeze() bool {
	return t != nil && BoolOr(t.BollingerSqueeze, false)
}

func (t *TechnicalLayer) ClimaxDetected() bool {
	return t != nil && BoolOr(t.Volume.ClimaxDetected, false)
}

func (t *TechnicalLayer) Touch() string {
	if t == nil {
		return ""
	}
	return StringOr(t.TouchRank, "")
}

// Fatigued reports a fourth-or-later touch of the balance zone.
func (t *TechnicalLayer) Fatigued() bool {
	return strings.Contains(t.Touch(), "Fourth")
}

// MemoryLayer carries proxy-memory and intermarket readings.
type MemoryLayer struct {
	ZoneHit    *bool `json:"zone_hit,omitempty"`
	Divergence *bool `json:"divergence,omitempty"`
	VIXExtreme *bool `json:"vix_extreme,omitempty"`
}

// SequenceLayer carries the sequence-level hits.
type SequenceLayer struct {
	HolyTrinity *bool `json:"is_holy_trinity,omitempty"`
	Palindrome  *bool `json:"is_palindrome,omitempty"`
}

// MASystemLayer is the moving-average regime and crossover signal.
type MASystemLayer struct {
	Regime *string `json:"regime,omitempty"`
	Signal *string `json:"signal,omitempty"`
}

func (m *MASystemLayer) RegimeOr(def string) string {
	if m == nil {
		return def
	}
	return StringOr(m.Regime, def)
}

func (m *MASystemLayer) SignalOr(def string) string {
	if m == nil {
		return def
	}
	return StringOr(m.Signal, def)
}

// MacroLayer is the macro regime read (e.g. Risk-On, Transitional).
type MacroLayer struct {
	Macro *string `json:"macro,omitempty"`
}

func (m *MacroLayer) MacroOr(def string) string {
	if m == nil {
		return def
	}
	return StringOr(m.Macro, def)
}

// TimeframeReading is the per-timeframe trend read. A non-empty Error marks
// the timeframe as unavailable; it is then ignored by horizon derivation.
type TimeframeReading struct {
	MARegime     *string `json:"ma_regime,omitempty"`
	BalanceState *string `json:"balance_state,omitempty"`
	Error        string  `json:"error,omitempty"`
}

func (r TimeframeReading) Usable() bool {
	return r.Error == ""
}

// IndicatorBundle is the full set of indicator outputs for one symbol scan.
// It is built once per scan and treated as read-only afterwards.
type IndicatorBundle struct {
	Symbol       string                         `json:"symbol"`
	AsOf         time.Time                      `json:"as_of"`
	CurrentPrice float64                        `json:"current_price"`
	Technical    *TechnicalLayer                `json:"technical,omitempty"`
	MarketMemory *MemoryLayer                   `json:"market_memory,omitempty"`
	Sequence     *SequenceLayer                 `json:"sequence,omitempty"`
	MASystem     *MASystemLayer                 `json:"ma_system,omitempty"`
	Regime       *MacroLayer                    `json:"regime,omitempty"`
	Timeframes   map[Timeframe]TimeframeReading `json:"timeframes,omitempty"`
}

// Reading returns the reading for tf and whether it is present and usable.
func (b *IndicatorBundle) Reading(tf Timeframe) (TimeframeReading, bool) {
	if b == nil || b.Timeframes == nil {
		return TimeframeReading{}, false
	}
	r, ok := b.Timeframes[tf]
	if !ok || !r.Usable() {
		return TimeframeReading{}, false
	}
	return r, true
}
