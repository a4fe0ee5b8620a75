package similarity

import (
	"math"
	"sort"

	"Corexia/internal/domain/models"
)

// MaxMatches caps how many past occurrences feed one summary.
const MaxMatches = 50

// Confidence grows linearly with sample size and saturates at MaxMatches.
func Confidence(occurrences int) float64 {
	if occurrences <= 0 {
		return 0
	}
	return math.Min(float64(occurrences)/MaxMatches, 1.0)
}

// Summarize reduces matching archive records to outcome shares and the
// median 10-day forward return. Records without a 10-day return are
// ignored; only the most recent MaxMatches of the remainder are used, so
// callers should pass records oldest first. No records yields a zero value.
func Summarize(records []models.ArchiveRecord) models.SimilarityStats {
	complete := make([]models.ArchiveRecord, 0, len(records))
	for _, r := range records {
		if r.Backfilled() {
			complete = append(complete, r)
		}
	}
	if len(complete) > MaxMatches {
		complete = complete[len(complete)-MaxMatches:]
	}
	n := len(complete)
	if n == 0 {
		return models.SimilarityStats{}
	}

	counts := map[models.Resolution]int{}
	returns := make([]float64, 0, n)
	for _, r := range complete {
		if r.ResolutionType != nil {
			counts[*r.ResolutionType]++
		}
		returns = append(returns, *r.Forward10dReturn)
	}

	pct := func(c int) float64 { return roundTo(float64(c)/float64(n)*100, 1) }
	return models.SimilarityStats{
		TotalOccurrences:     n,
		TrendContinuationPct: pct(counts[models.ResolutionTrend]),
		MeanReversionPct:     pct(counts[models.ResolutionMeanReversion]),
		ChopPct:              pct(counts[models.ResolutionChop]),
		Median10dReturn:      roundTo(median(returns), 2),
		Confidence:           Confidence(n),
	}
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
