package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	pkgch "Corexia/pkg/clickhouse"
	applogger "Corexia/pkg/logger"
)

// CHCandleStore keeps daily bars for the outcome backfill and the candles API.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

var _ domrepo.CandleRepository = (*CHCandleStore)(nil)

func NewCHCandleStore(ch *pkgch.Client, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{
		db:    ch.DB(),
		table: ch.Database() + "." + pkgch.TableCandles,
		l:     l,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// UpsertDailyCandles inserts bars in chunks. Rows for the same (symbol, day)
// collapse to the newest on merge.
func (s *CHCandleStore) UpsertDailyCandles(ctx context.Context, candles []models.Candle) error {
	const chunkSize = 1000
	version := s.now()
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			if c.Symbol == "" || c.Bucket.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Symbol, models.DateKey(c.Bucket), c.Open, c.High, c.Low, c.Close, c.Volume, version)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, day, open, high, low, close, volume, updated_at) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse daily_candles insert error",
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("upsert daily candles: %w", err)
		}
	}
	return nil
}

func (s *CHCandleStore) GetDailyCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT day, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND day >= ? AND day <= ?
        ORDER BY day ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, models.DateKey(from), models.DateKey(to))
	if err != nil {
		s.l.Error("clickhouse daily_candles query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get daily candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 32)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse daily_candles ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
