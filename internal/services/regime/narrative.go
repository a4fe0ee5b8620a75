package regime

import (
	"sort"
	"strings"

	"Corexia/internal/domain/models"
)

// Spine is a declarative two-sentence description of the market a snapshot describes.
func Spine(s models.RegimeSnapshot) string {
	var first string
	long, mid := s.Horizons.Long, s.Horizons.Mid
	switch {
	case long == models.HorizonBullish && mid == models.HorizonBullish:
		first = "Higher-timeframe structure remains bullish, anchoring the broader market context."
	case long == models.HorizonBearish && mid == models.HorizonBearish:
		first = "Higher-timeframe structure is bearish, defining a defensive market backdrop."
	case long == models.HorizonBullish:
		first = "Higher-timeframe structure is bullish, but mid-term alignment is weakening."
	case long == models.HorizonBearish:
		first = "Higher-timeframe structure is bearish, though mid-term structure shows early divergence."
	default:
		first = "Higher-timeframe structure is mixed, with no dominant directional control."
	}

	var notes []string
	switch s.BalanceState {
	case models.BalanceIn:
		notes = append(notes, "price is rotating within balance")
	case models.BalanceBreakout:
		notes = append(notes, "price is pressing above balance")
	case models.BalanceBreakdown:
		notes = append(notes, "price is slipping below balance")
	}
	if strings.Contains(s.TouchRank, "Fourth") {
		notes = append(notes, "structure shows signs of fatigue")
	}
	if s.VolatilityState == models.VolatilityCompressed {
		notes = append(notes, "volatility is compressed and vulnerable to expansion")
	}
	if s.Friction == models.FrictionHigh {
		notes = append(notes, "market friction is elevated")
	}

	if len(notes) == 0 {
		return first
	}
	return first + " Locally, " + strings.Join(notes, ", and ") + "."
}

// HeadlineContext explains why the spine reads calm or tense.
func HeadlineContext(s models.RegimeSnapshot) string {
	var alignment string
	switch score := s.Confluence.NormalizedScore; {
	case score >= 9:
		alignment = "Alignment is strong"
	case score >= 6:
		alignment = "Alignment is improving"
	default:
		alignment = "Alignment is thin"
	}

	structure := "with structure still forming"
	switch s.BalanceState {
	case models.BalanceBreakout:
		structure = "with price pressing above balance"
	case models.BalanceBreakdown:
		structure = "with price slipping below balance"
	case models.BalanceIn:
		structure = "with price contained in balance"
	}

	return alignment + " " + structure + ". Market friction is " + strings.ToLower(string(s.Friction)) + "."
}

// CrossAssetNarrative summarizes whether equities and volatility agree.
// volSymbol identifies the volatility proxy among snapshots; the rest are
// treated as risk assets. It returns the narrative and a High, Moderate or
// Low confidence label.
func CrossAssetNarrative(snapshots map[string]models.RegimeSnapshot, volSymbol string) (string, string) {
	var volState models.MarketState
	counts := map[models.MarketState]int{}
	highFriction, total := 0, 0

	symbols := make([]string, 0, len(snapshots))
	for sym := range snapshots {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		s := snapshots[sym]
		if sym == volSymbol {
			volState = s.State
			continue
		}
		counts[s.State]++
		if s.Friction == models.FrictionHigh {
			highFriction++
		}
		total++
	}

	if total == 0 {
		return "Cross-asset signals are diverging. Market narrative is unstable.", "Low"
	}
	share := func(n int) float64 { return float64(n) / float64(total) }

	switch {
	case share(counts[models.StateTrending]) >= 0.75:
		if volState != models.StateStressed {
			return "Risk assets are aligned in trending regimes while volatility remains controlled. " +
				"The market narrative is coherent.", "High"
		}
		return "Risk assets are trending but volatility shows stress signals, signaling structural " +
			"tension beneath the surface.", "Moderate"
	case share(counts[models.StateStressed]) >= 0.5:
		return "Multiple assets are showing structural stress. " +
			"Defensive positioning is warranted across the complex.", "High"
	case share(counts[models.StateRange]) >= 0.75:
		return "Cross-asset signals are contained in balance. No asset class is asserting control.", "Moderate"
	case share(counts[models.StateTrending]) >= 0.5:
		if share(highFriction) >= 0.5 {
			return "Equities show trending bias across timeframes, but market friction " +
				"is elevated. This divergence suggests rising sensitivity to headlines " +
				"and flow-driven reversals.", "Moderate"
		}
		return "Equities show trending bias with moderate cross-asset alignment. " +
			"Narrative is constructive but not unanimous.", "Moderate"
	default:
		return "Cross-asset signals are diverging. Market narrative is unstable.", "Low"
	}
}
