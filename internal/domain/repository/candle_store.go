package repository

import (
	"context"
	"time"

	"Corexia/internal/domain/models"
)

// CandleStore provides read-only access to daily bars for outcome backfill.
type CandleStore interface {
	GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}

// CandleWriter stores daily bars. A bar for an existing (symbol, day) replaces it.
type CandleWriter interface {
	UpsertDailyCandles(ctx context.Context, candles []models.Candle) error
}

// CandleRepository is the daily_candles table as seen by ingest, backfill and the API.
type CandleRepository interface {
	CandleStore
	CandleWriter
}

// CandleSource supplies daily bars from outside the store, such as the
// indicator service or the live trade feed.
type CandleSource interface {
	DailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}
