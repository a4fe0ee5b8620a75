package regime

import (
	"math"
	"sort"
	"unicode"

	"Corexia/internal/domain/models"
)

type check struct {
	key    string
	weight float64
	eval   func(b *models.IndicatorBundle) bool
}

// checklist is evaluated in declaration order; that order breaks weight ties.
var checklist = []check{
	{"trendline_zone", 1.0, func(b *models.IndicatorBundle) bool {
		return tech(b) != nil && models.BoolOr(tech(b).TrendlineHit, false)
	}},
	{"2b_or_pattern", 1.5, func(b *models.IndicatorBundle) bool {
		t := tech(b)
		if t == nil {
			return false
		}
		p := t.Patterns
		return models.BoolOr(p.TwoB, false) || models.BoolOr(p.DivingDuck, false) || models.BoolOr(p.Pop, false)
	}},
	{"imbalance", 1.0, func(b *models.IndicatorBundle) bool {
		return tech(b) != nil && models.BoolOr(tech(b).UnfilledGaps, false)
	}},
	{"volume_anomaly", 1.0, func(b *models.IndicatorBundle) bool {
		return tech(b) != nil && models.BoolOr(tech(b).VolumeClimax, false)
	}},
	{"proxy_memory", 1.0, func(b *models.IndicatorBundle) bool {
		return b.MarketMemory != nil && models.BoolOr(b.MarketMemory.ZoneHit, false)
	}},
	{"intermarket_divergence", 0.5, func(b *models.IndicatorBundle) bool {
		return b.MarketMemory != nil && models.BoolOr(b.MarketMemory.Divergence, false)
	}},
	{"sequence_level", 1.0, func(b *models.IndicatorBundle) bool {
		s := b.Sequence
		return s != nil && (models.BoolOr(s.HolyTrinity, false) || models.BoolOr(s.Palindrome, false))
	}},
	{"curvature", 0.5, func(b *models.IndicatorBundle) bool {
		return tech(b) != nil && models.BoolOr(tech(b).Curvature, false)
	}},
	{"balance_zone", 1.0, func(b *models.IndicatorBundle) bool {
		return tech(b) != nil && models.BoolOr(tech(b).BalanceZone, false)
	}},
	{"liquidity_grab", 1.0, func(b *models.IndicatorBundle) bool {
		return tech(b) != nil && models.BoolOr(tech(b).StophuntComplete, false)
	}},
	{"htf_structure", 1.0, htfStructure},
	{"space_vacuum", 1.0, func(b *models.IndicatorBundle) bool {
		t := tech(b)
		return t != nil && (models.BoolOr(t.Vacuum, false) || t.Squeeze())
	}},
}

func tech(b *models.IndicatorBundle) *models.TechnicalLayer {
	if b == nil {
		return nil
	}
	return b.Technical
}

// htfStructure holds when the weekly or daily MA regime is anything but Neutral.
func htfStructure(b *models.IndicatorBundle) bool {
	for _, tf := range []models.Timeframe{models.TF1W, models.TF1D} {
		r, ok := b.Reading(tf)
		if !ok {
			continue
		}
		if reg := models.StringOr(r.MARegime, ""); reg != "" && reg != models.MARegimeNeutral {
			return true
		}
	}
	return false
}

// ChecklistWeights returns the check keys and weights in declaration order.
func ChecklistWeights() ([]string, []float64) {
	keys := make([]string, len(checklist))
	weights := make([]float64, len(checklist))
	for i, c := range checklist {
		keys[i], weights[i] = c.key, c.weight
	}
	return keys, weights
}

type attribution struct {
	label  string
	weight float64
}

// ScoreConfluence evaluates the weighted checklist. A nil bundle or missing
// dimension scores every affected check as absent.
func ScoreConfluence(b *models.IndicatorBundle) models.ConfluenceResult {
	if b == nil {
		b = &models.IndicatorBundle{}
	}

	var score, maxScore float64
	checks := make(map[string]bool, len(checklist))
	present := make([]attribution, 0, len(checklist))
	absent := make([]attribution, 0, len(checklist))

	for _, c := range checklist {
		maxScore += c.weight
		hit := c.eval(b)
		checks[c.key] = hit
		a := attribution{label: Label(c.key), weight: c.weight}
		if hit {
			score += c.weight
			present = append(present, a)
		} else {
			absent = append(absent, a)
		}
	}

	normalized := 0
	if maxScore > 0 {
		normalized = int(math.RoundToEven(score / maxScore * 12))
	}

	return models.ConfluenceResult{
		WeightedScore:   round(score, 2),
		WeightedMax:     round(maxScore, 2),
		NormalizedScore: normalized,
		Drivers:         topByWeight(present, 3),
		Gaps:            topByWeight(absent, 3),
		Checks:          checks,
	}
}

func topByWeight(items []attribution, n int) []string {
	sort.SliceStable(items, func(i, j int) bool { return items[i].weight > items[j].weight })
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.label)
	}
	return out
}

// Label turns a check key into its display form: "2b_or_pattern" -> "2B Or Pattern".
func Label(key string) string {
	out := make([]rune, 0, len(key))
	prevLetter := false
	for _, r := range key {
		if r == '_' {
			r = ' '
		}
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		out = append(out, r)
	}
	return string(out)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
