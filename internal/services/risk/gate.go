package risk

import (
	"fmt"

	"Corexia/internal/domain/models"
)

// Health thresholds on the latest recorded drawdown.
const (
	WarningDrawdown  = 0.10
	CriticalDrawdown = 0.15
)

// Check runs the hard stops against a proposed decision. The first failing
// check wins; the order is size, open positions, drawdown, daily loss, cooldown.
// A nil state is treated as an agent with no history.
func Check(p models.AgentProfile, state *models.RuntimeState, d models.Decision) models.RiskVerdict {
	if state == nil {
		state = &models.RuntimeState{}
	}

	if d.SizePct > p.MaxPositionPct {
		return deny("Position size %.1f%% exceeds max %.1f%%", d.SizePct*100, p.MaxPositionPct*100)
	}

	if open := len(state.OpenPositions); open >= p.MaxPositions {
		return deny("Max positions reached: %d/%d", open, p.MaxPositions)
	}

	if today := state.Today; today != nil {
		if today.Drawdown >= p.MaxDrawdownPct {
			return deny("Max drawdown breached: %.1f%%", today.Drawdown*100)
		}
		if today.DailyPnL <= -p.DailyLossLimitPct {
			return deny("Daily loss limit hit: %.1f%%", today.DailyPnL*100)
		}
	}

	if n := p.CooldownAfterLosses; n > 0 && consecutiveLosses(state.RecentClosed, n) {
		return deny("Cooldown active after %d consecutive losses", n)
	}

	return models.RiskVerdict{Allowed: true, Reason: models.RiskPassed}
}

// consecutiveLosses reports whether the n most recent closed trades all lost.
// Fewer than n closed trades never trigger a cooldown.
func consecutiveLosses(recent []models.Position, n int) bool {
	if len(recent) < n {
		return false
	}
	for _, p := range recent[:n] {
		if !p.Loss() {
			return false
		}
	}
	return true
}

func deny(format string, args ...interface{}) models.RiskVerdict {
	return models.RiskVerdict{Reason: fmt.Sprintf(format, args...)}
}

// Health grades an account by the drawdown on its latest performance row.
func Health(latest *models.DailyPerformance) models.AccountHealth {
	if latest == nil {
		return models.HealthOK
	}
	switch {
	case latest.Drawdown >= CriticalDrawdown:
		return models.HealthCritical
	case latest.Drawdown >= WarningDrawdown:
		return models.HealthWarning
	default:
		return models.HealthOK
	}
}
