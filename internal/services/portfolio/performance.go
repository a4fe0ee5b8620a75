package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"Corexia/internal/domain/models"
)

var hundred = decimal.NewFromInt(100)

// Evaluate derives the performance row for day from an agent's full position
// history. Equity compounds the realized return of every closed position on
// the starting capital. The peak carries forward from the rows in state so
// drawdown is measured against the best equity seen so far.
func Evaluate(agentID string, capital float64, positions []models.Position, state *models.RuntimeState, day, now time.Time) models.DailyPerformance {
	start := decimal.NewFromFloat(capital)

	realized := decimal.Zero
	exposure := decimal.Zero
	for _, p := range positions {
		if p.Open() {
			exposure = exposure.Add(decimal.NewFromFloat(p.SizePct))
			continue
		}
		if p.PnLPct != nil {
			realized = realized.Add(decimal.NewFromFloat(*p.PnLPct))
		}
	}
	equity := start.Add(start.Mul(realized).Div(hundred))

	base := start
	peak := decimal.Max(start, equity)
	if state != nil {
		if prev := state.Previous; prev != nil {
			if prev.Equity > 0 {
				base = decimal.NewFromFloat(prev.Equity)
			}
			peak = decimal.Max(peak, decimal.NewFromFloat(prev.PeakEquity))
		}
		if cur := state.Today; cur != nil {
			peak = decimal.Max(peak, decimal.NewFromFloat(cur.PeakEquity))
		}
	}

	drawdown := decimal.Zero
	if peak.IsPositive() {
		drawdown = peak.Sub(equity).Div(peak)
	}
	dailyPnL := decimal.Zero
	if base.IsPositive() {
		dailyPnL = equity.Sub(base).Div(base)
	}

	return models.DailyPerformance{
		AgentID:    agentID,
		Date:       models.DateKey(day),
		Equity:     equity.Round(2).InexactFloat64(),
		PeakEquity: peak.Round(2).InexactFloat64(),
		DailyPnL:   dailyPnL.Round(6).InexactFloat64(),
		Drawdown:   drawdown.Round(6).InexactFloat64(),
		Exposure:   exposure.InexactFloat64(),
		UpdatedAt:  now,
	}
}

// UnrealizedPct is the size-weighted open return in percent of equity, marked
// at the prices quote returns. Positions without a quote are skipped.
func UnrealizedPct(open []models.Position, quote func(symbol string) (float64, bool)) float64 {
	total := decimal.Zero
	for _, p := range open {
		price, ok := quote(p.Symbol)
		if !ok || !p.Open() {
			continue
		}
		r := decimal.NewFromFloat(p.ReturnPct(price)).Mul(decimal.NewFromFloat(p.SizePct))
		total = total.Add(r)
	}
	return total.Round(4).InexactFloat64()
}
