package similarity

import (
	"fmt"
	"math"

	"Corexia/internal/domain/models"
)

// Forward window lengths in trading sessions.
const (
	ShortWindow = 5
	LongWindow  = 10
)

// Excursion is the path of price over a forward window, in percent of the event close.
type Excursion struct {
	Delta  float64
	Peak   float64
	Trough float64
}

// Measure computes delta (last close), peak (max high) and trough (min low)
// relative to eventClose.
func Measure(eventClose float64, window []models.Candle) (Excursion, error) {
	if eventClose <= 0 {
		return Excursion{}, fmt.Errorf("event close must be positive, got %v", eventClose)
	}
	if len(window) == 0 {
		return Excursion{}, fmt.Errorf("empty forward window")
	}
	hi, lo := window[0].High, window[0].Low
	for _, c := range window[1:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	pct := func(p float64) float64 { return (p/eventClose - 1) * 100 }
	return Excursion{
		Delta:  pct(window[len(window)-1].Close),
		Peak:   pct(hi),
		Trough: pct(lo),
	}, nil
}

// Classify labels how the forward path resolved. Small moves are Chop; a
// delta that dominates the opposite excursion is Trend Continuation; a path
// whose range dwarfs its net move is Mean Reversion; anything else is Mixed.
func (e Excursion) Classify() models.Resolution {
	absDelta, absPeak, absTrough := math.Abs(e.Delta), math.Abs(e.Peak), math.Abs(e.Trough)
	switch {
	case absDelta < 2 && absPeak < 3 && absTrough < 3:
		return models.ResolutionChop
	case e.Delta > 0 && e.Peak > absTrough*2:
		return models.ResolutionTrend
	case e.Delta < 0 && absTrough > e.Peak*2:
		return models.ResolutionTrend
	case absDelta < math.Abs(e.Peak-e.Trough)/2:
		return models.ResolutionMeanReversion
	default:
		return models.ResolutionMixed
	}
}

// Outcome is what the backfill job writes onto an archive record.
type Outcome struct {
	Forward5d  float64
	Forward10d float64
	Resolution models.Resolution
}

// ForwardOutcome computes the outcome from the sessions that follow the
// snapshot date, ordered oldest first. It fails until LongWindow sessions exist.
func ForwardOutcome(eventClose float64, after []models.Candle) (Outcome, error) {
	if len(after) < LongWindow {
		return Outcome{}, fmt.Errorf("need %d forward sessions, have %d", LongWindow, len(after))
	}
	window := after[:LongWindow]
	exc, err := Measure(eventClose, window)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Forward5d:  roundTo((window[ShortWindow-1].Close/eventClose-1)*100, 2),
		Forward10d: roundTo(exc.Delta, 2),
		Resolution: exc.Classify(),
	}, nil
}

// Apply writes the outcome onto rec.
func (o Outcome) Apply(rec *models.ArchiveRecord) {
	f5, f10, res := o.Forward5d, o.Forward10d, o.Resolution
	rec.Forward5dReturn = &f5
	rec.Forward10dReturn = &f10
	rec.ResolutionType = &res
}
