package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
)

func TestExcursionClassify(t *testing.T) {
	tests := []struct {
		name string
		exc  Excursion
		want models.Resolution
	}{
		{"small moves", Excursion{Delta: 1, Peak: 2, Trough: -2}, models.ResolutionChop},
		{"up trend", Excursion{Delta: 4, Peak: 5, Trough: -1}, models.ResolutionTrend},
		{"down trend", Excursion{Delta: -5, Peak: 1, Trough: -6}, models.ResolutionTrend},
		{"round trip", Excursion{Delta: 1, Peak: 5, Trough: -4}, models.ResolutionMeanReversion},
		{"mixed", Excursion{Delta: 4, Peak: 5, Trough: -3}, models.ResolutionMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.exc.Classify())
		})
	}
}

func TestMeasure(t *testing.T) {
	window := []models.Candle{
		{High: 102, Low: 99, Close: 101},
		{High: 106, Low: 100, Close: 104},
		{High: 105, Low: 97, Close: 103},
	}
	exc, err := Measure(100, window)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, exc.Delta, 1e-9)
	assert.InDelta(t, 6.0, exc.Peak, 1e-9)
	assert.InDelta(t, -3.0, exc.Trough, 1e-9)

	_, err = Measure(0, window)
	assert.Error(t, err)
	_, err = Measure(100, nil)
	assert.Error(t, err)
}

func TestForwardOutcome(t *testing.T) {
	after := make([]models.Candle, 0, 12)
	for i := 1; i <= 12; i++ {
		p := 100 + float64(i)
		after = append(after, models.Candle{Open: p, High: p + 0.5, Low: p - 0.5, Close: p})
	}

	out, err := ForwardOutcome(100, after)
	require.NoError(t, err)
	assert.Equal(t, 5.0, out.Forward5d)
	assert.Equal(t, 10.0, out.Forward10d)
	assert.Equal(t, models.ResolutionTrend, out.Resolution)

	_, err = ForwardOutcome(100, after[:9])
	assert.Error(t, err)
}
