package models

// Timeframe is a bar resolution understood by the indicator engine.
type Timeframe string

const (
	TF1W  Timeframe = "1W"
	TF1D  Timeframe = "1D"
	TF4H  Timeframe = "4H"
	TF90M Timeframe = "90M"
)

// DefaultTimeframes is the set needed to derive short, mid and long horizons.
func DefaultTimeframes() []Timeframe {
	return []Timeframe{TF1W, TF1D, TF4H, TF90M}
}
