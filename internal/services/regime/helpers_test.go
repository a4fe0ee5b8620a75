package regime

import "Corexia/internal/domain/models"

type bundleOpt func(b *models.IndicatorBundle)

func newBundle(opts ...bundleOpt) *models.IndicatorBundle {
	b := &models.IndicatorBundle{
		Symbol:     "SPY",
		Technical:  &models.TechnicalLayer{},
		Timeframes: map[models.Timeframe]models.TimeframeReading{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func withBalance(s models.BalanceState) bundleOpt {
	return func(b *models.IndicatorBundle) { b.Technical.Structure.BalanceState = models.Str(string(s)) }
}

func withTouch(rank string) bundleOpt {
	return func(b *models.IndicatorBundle) { b.Technical.TouchRank = models.Str(rank) }
}

func withClimax() bundleOpt {
	return func(b *models.IndicatorBundle) { b.Technical.Volume.ClimaxDetected = models.Bool(true) }
}

func withSqueeze() bundleOpt {
	return func(b *models.IndicatorBundle) { b.Technical.BollingerSqueeze = models.Bool(true) }
}

func withMA(regime, signal string) bundleOpt {
	return func(b *models.IndicatorBundle) {
		b.MASystem = &models.MASystemLayer{Regime: models.Str(regime), Signal: models.Str(signal)}
	}
}

func withMacro(m string) bundleOpt {
	return func(b *models.IndicatorBundle) { b.Regime = &models.MacroLayer{Macro: models.Str(m)} }
}

func withTF(tf models.Timeframe, maRegime string) bundleOpt {
	return func(b *models.IndicatorBundle) {
		b.Timeframes[tf] = models.TimeframeReading{MARegime: models.Str(maRegime)}
	}
}

func withTFError(tf models.Timeframe) bundleOpt {
	return func(b *models.IndicatorBundle) {
		b.Timeframes[tf] = models.TimeframeReading{Error: "data unavailable"}
	}
}
