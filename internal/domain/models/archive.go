package models

import "time"

type Resolution string

const (
	ResolutionTrend         Resolution = "Trend Continuation"
	ResolutionMeanReversion Resolution = "Mean Reversion"
	ResolutionChop          Resolution = "Chop"
	ResolutionMixed         Resolution = "Mixed"
)

// ArchiveRecord is one stored daily fingerprint. Forward returns and the
// resolution stay nil until the backfill job fills them.
type ArchiveRecord struct {
	Symbol           string            `json:"symbol"`
	Date             time.Time         `json:"date"`
	Fingerprint      RegimeFingerprint `json:"fingerprint"`
	ConfluenceScore  int               `json:"confluence_score"`
	Close            float64           `json:"close"`
	Forward5dReturn  *float64          `json:"forward_5d_return,omitempty"`
	Forward10dReturn *float64          `json:"forward_10d_return,omitempty"`
	ResolutionType   *Resolution       `json:"resolution_type,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Backfilled reports whether the 10-day outcome is known.
func (r ArchiveRecord) Backfilled() bool { return r.Forward10dReturn != nil }

// SimilarityStats summarizes the outcomes of past matching regimes.
// Percentages are in the 0-100 range.
type SimilarityStats struct {
	TotalOccurrences     int     `json:"total_occurrences"`
	TrendContinuationPct float64 `json:"trend_continuation_pct"`
	MeanReversionPct     float64 `json:"mean_reversion_pct"`
	ChopPct              float64 `json:"chop_pct"`
	Median10dReturn      float64 `json:"median_10d_return"`
	Confidence           float64 `json:"confidence"`
}

// DateKey normalizes t to the archive's calendar-day key in UTC.
func DateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
