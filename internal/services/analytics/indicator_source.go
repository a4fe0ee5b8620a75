package analytics

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	applogger "Corexia/pkg/logger"
)

// HTTPIndicatorSource reads indicator bundles from the indicator service.
// The main bundle is required; each timeframe read is optional and a
// failure is recorded on that reading instead of failing the bundle.
type HTTPIndicatorSource struct {
	base    *HTTPServiceBase
	metrics domrepo.Metrics
	log     *applogger.Logger
	workers int
}

var (
	_ domrepo.IndicatorSource = (*HTTPIndicatorSource)(nil)
	_ domrepo.CandleSource    = (*HTTPIndicatorSource)(nil)
)

func NewHTTPIndicatorSource(base *HTTPServiceBase, m domrepo.Metrics, l *applogger.Logger) *HTTPIndicatorSource {
	return &HTTPIndicatorSource{base: base, metrics: m, log: l, workers: 4}
}

func (s *HTTPIndicatorSource) FetchBundle(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.IndicatorBundle, error) {
	start := time.Now()
	b, err := s.fetch(ctx, symbol, timeframes)
	s.metrics.RecordFetch(symbol, err == nil, time.Since(start).Seconds())
	return b, err
}

func (s *HTTPIndicatorSource) fetch(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.IndicatorBundle, error) {
	var b models.IndicatorBundle
	if err := s.base.GetJSON(ctx, "/v1/bundle/"+url.PathEscape(symbol), nil, &b); err != nil {
		return nil, fmt.Errorf("fetch bundle %s: %w: %w", symbol, models.ErrDataUnavailable, err)
	}
	if b.Symbol == "" {
		b.Symbol = symbol
	}

	b.Timeframes = make(map[models.Timeframe]models.TimeframeReading, len(timeframes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, tf := range timeframes {
		tf := tf
		g.Go(func() error {
			r := s.fetchTimeframe(gctx, symbol, tf)
			mu.Lock()
			b.Timeframes[tf] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch bundle %s: %w", symbol, err)
	}
	return &b, nil
}

func (s *HTTPIndicatorSource) fetchTimeframe(ctx context.Context, symbol string, tf models.Timeframe) models.TimeframeReading {
	var r models.TimeframeReading
	q := url.Values{"tf": {string(tf)}}
	if err := s.base.GetJSON(ctx, "/v1/timeframe/"+url.PathEscape(symbol), q, &r); err != nil {
		s.log.Warn("timeframe unavailable",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", string(tf)),
			applogger.Error(err),
		)
		return models.TimeframeReading{Error: err.Error()}
	}
	return r
}

type candlesResponse struct {
	Symbol  string          `json:"symbol"`
	Candles []models.Candle `json:"candles"`
}

// DailyCandles reads the indicator service's daily series for [from, to].
// Bars are normalized to their session date and stamped with symbol.
func (s *HTTPIndicatorSource) DailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	q := url.Values{
		"tf":   {string(models.TF1D)},
		"from": {from.Format(time.DateOnly)},
		"to":   {to.Format(time.DateOnly)},
	}
	var resp candlesResponse
	if err := s.base.GetJSON(ctx, "/v1/candles/"+url.PathEscape(symbol), q, &resp); err != nil {
		return nil, fmt.Errorf("fetch daily candles %s: %w: %w", symbol, models.ErrDataUnavailable, err)
	}
	out := make([]models.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		if c.Bucket.IsZero() || c.Close <= 0 {
			continue
		}
		c.Symbol = symbol
		c.Bucket = models.DateKey(c.Bucket)
		out = append(out, c)
	}
	return out, nil
}
