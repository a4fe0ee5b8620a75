package models

import "time"

// Position is a simulated holding owned by exactly one agent.
type Position struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agent_id"`
	Symbol     string     `json:"symbol"`
	Side       Action     `json:"side"`
	SizePct    float64    `json:"size_pct"`
	EntryPrice float64    `json:"entry_price"`
	Rationale  string     `json:"rationale"`
	OpenedAt   time.Time  `json:"opened_at"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	// PnLPct is the realized return of the position in percent.
	PnLPct *float64 `json:"pnl_pct,omitempty"`
}

func (p Position) Open() bool { return p.ClosedAt == nil }

// Loss reports a closed position with a negative realized return.
func (p Position) Loss() bool { return p.PnLPct != nil && *p.PnLPct < 0 }

// ReturnPct is the side-adjusted percent move from entry to price.
func (p Position) ReturnPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	move := (price - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == ActionShort {
		return -move
	}
	return move
}

// Closed returns a copy of p closed at price.
func (p Position) Closed(price float64, at time.Time) Position {
	pnl := p.ReturnPct(price)
	p.ExitPrice = &price
	p.ClosedAt = &at
	p.PnLPct = &pnl
	return p
}

// DailyPerformance is the per-agent equity snapshot for one calendar day.
// DailyPnL, Drawdown and Exposure are fractions.
type DailyPerformance struct {
	AgentID    string    `json:"agent_id"`
	Date       time.Time `json:"date"`
	Equity     float64   `json:"equity"`
	PeakEquity float64   `json:"peak_equity"`
	DailyPnL   float64   `json:"daily_pnl"`
	Drawdown   float64   `json:"drawdown"`
	Exposure   float64   `json:"exposure_pct"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RuntimeState is everything the risk gate reads for one agent.
type RuntimeState struct {
	OpenPositions []Position `json:"open_positions"`
	// Today is nil when no performance row exists for the current day.
	Today *DailyPerformance `json:"today,omitempty"`
	// RecentClosed is ordered most recent first.
	RecentClosed []Position `json:"recent_closed"`
	// Previous is the most recent performance row dated before today.
	Previous *DailyPerformance `json:"previous,omitempty"`
}

// LatestPerformance returns today's row, falling back to the previous one.
func (s RuntimeState) LatestPerformance() *DailyPerformance {
	if s.Today != nil {
		return s.Today
	}
	return s.Previous
}
