package repository

import (
	"fmt"
	"strings"

	"Corexia/internal/domain/models"
)

// IsValidTimeframe returns true if tf is understood by the indicator engine.
func IsValidTimeframe(tf models.Timeframe) bool {
	switch tf {
	case models.TF1W, models.TF1D, models.TF4H, models.TF90M:
		return true
	default:
		return false
	}
}

// ParseTimeframes converts configured strings into timeframes, rejecting
// unknown values. An empty input yields the default set.
func ParseTimeframes(raw []string) ([]models.Timeframe, error) {
	if len(raw) == 0 {
		return models.DefaultTimeframes(), nil
	}
	out := make([]models.Timeframe, 0, len(raw))
	for _, s := range raw {
		tf := models.Timeframe(strings.ToUpper(strings.TrimSpace(s)))
		if !IsValidTimeframe(tf) {
			return nil, fmt.Errorf("unsupported timeframe %q", s)
		}
		out = append(out, tf)
	}
	return out, nil
}
