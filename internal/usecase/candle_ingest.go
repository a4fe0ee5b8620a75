package usecase

import (
	"context"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	applogger "Corexia/pkg/logger"
)

// defaultIngestLookback, in days, covers the backfill cutoff plus its candle window.
const defaultIngestLookback = 45

type IngestReport struct {
	Symbol string `json:"symbol"`
	Stored int    `json:"stored"`
	Error  string `json:"error,omitempty"`
}

// CandleIngestJob copies daily bars from its sources into the candle store,
// which the backfill and the candles API read. Sources are tried in order;
// for a day present in several, the first source wins.
type CandleIngestJob struct {
	sources  []domrepo.CandleSource
	store    domrepo.CandleWriter
	symbols  []string
	lookback int
	log      *applogger.Logger
	now      func() time.Time
}

func NewCandleIngestJob(store domrepo.CandleWriter, symbols []string, lookbackDays int, l *applogger.Logger, sources ...domrepo.CandleSource) *CandleIngestJob {
	if lookbackDays <= 0 {
		lookbackDays = defaultIngestLookback
	}
	return &CandleIngestJob{
		sources:  sources,
		store:    store,
		symbols:  symbols,
		lookback: lookbackDays,
		log:      l,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run ingests every symbol. A symbol no source could serve is reported and
// skipped; Run fails only when every symbol failed.
func (j *CandleIngestJob) Run(ctx context.Context) ([]IngestReport, error) {
	to := models.DateKey(j.now())
	from := to.AddDate(0, 0, -j.lookback)

	reports := make([]IngestReport, 0, len(j.symbols))
	failed := 0
	for _, sym := range j.symbols {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep := IngestReport{Symbol: sym}
		n, err := j.symbol(ctx, sym, from, to)
		if err != nil {
			failed++
			rep.Error = err.Error()
			j.log.Warn("candle ingest failed", applogger.String("symbol", sym), applogger.Error(err))
		}
		rep.Stored = n
		reports = append(reports, rep)
	}
	if failed > 0 && failed == len(j.symbols) {
		return reports, fmt.Errorf("candle ingest: no symbol ingested")
	}
	return reports, nil
}

func (j *CandleIngestJob) symbol(ctx context.Context, symbol string, from, to time.Time) (int, error) {
	var (
		merged  []models.Candle
		seen    = make(map[time.Time]bool)
		lastErr error
		served  bool
	)
	for _, src := range j.sources {
		bars, err := src.DailyCandles(ctx, symbol, from, to)
		if err != nil {
			lastErr = err
			continue
		}
		served = true
		for _, c := range bars {
			day := models.DateKey(c.Bucket)
			if seen[day] {
				continue
			}
			seen[day] = true
			c.Symbol, c.Bucket = symbol, day
			merged = append(merged, c)
		}
	}
	if !served {
		if lastErr == nil {
			lastErr = fmt.Errorf("no candle source configured")
		}
		return 0, lastErr
	}
	if len(merged) == 0 {
		return 0, nil
	}
	if err := j.store.UpsertDailyCandles(ctx, merged); err != nil {
		return 0, fmt.Errorf("store candles %s: %w", symbol, err)
	}
	j.log.Debug("candles ingested",
		applogger.String("symbol", symbol),
		applogger.Int("bars", len(merged)),
	)
	return len(merged), nil
}
