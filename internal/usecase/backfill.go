package usecase

import (
	"context"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/services/similarity"
	applogger "Corexia/pkg/logger"
)

// A record needs LongWindow sessions after its date; two calendar weeks is
// the earliest that can hold them.
const (
	pendingAge   = 14 * 24 * time.Hour
	candleWindow = 30
)

type BackfillReport struct {
	Symbol  string `json:"symbol"`
	Pending int    `json:"pending"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// BackfillJob fills forward returns and the resolution on archive records
// old enough to have a full forward window.
type BackfillJob struct {
	archive domrepo.ArchiveStore
	candles domrepo.CandleStore
	symbols []string
	log     *applogger.Logger
	now     func() time.Time
}

func NewBackfillJob(archive domrepo.ArchiveStore, candles domrepo.CandleStore, symbols []string, l *applogger.Logger) *BackfillJob {
	return &BackfillJob{
		archive: archive,
		candles: candles,
		symbols: symbols,
		log:     l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (j *BackfillJob) Run(ctx context.Context) ([]BackfillReport, error) {
	reports := make([]BackfillReport, 0, len(j.symbols))
	for _, sym := range j.symbols {
		rep, err := j.symbol(ctx, sym)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (j *BackfillJob) symbol(ctx context.Context, symbol string) (BackfillReport, error) {
	rep := BackfillReport{Symbol: symbol}
	cutoff := models.DateKey(j.now().Add(-pendingAge))
	pending, err := j.archive.Pending(ctx, symbol, cutoff)
	if err != nil {
		return rep, fmt.Errorf("pending %s: %w", symbol, err)
	}
	rep.Pending = len(pending)

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		ok, err := j.record(ctx, &rec)
		switch {
		case err != nil:
			rep.Failed++
			j.log.Warn("backfill record failed",
				applogger.String("symbol", symbol),
				applogger.Time("date", rec.Date),
				applogger.Error(err),
			)
		case !ok:
			rep.Skipped++
		default:
			rep.Updated++
		}
	}
	j.log.Info("backfill",
		applogger.String("symbol", symbol),
		applogger.Int("pending", rep.Pending),
		applogger.Int("updated", rep.Updated),
		applogger.Int("skipped", rep.Skipped),
		applogger.Int("failed", rep.Failed),
	)
	return rep, nil
}

// record returns false when the forward window is still incomplete.
func (j *BackfillJob) record(ctx context.Context, rec *models.ArchiveRecord) (bool, error) {
	day := models.DateKey(rec.Date)
	series, err := j.candles.GetDailyCandles(ctx, rec.Symbol, day, day.AddDate(0, 0, candleWindow))
	if err != nil {
		return false, fmt.Errorf("load candles: %w", err)
	}

	eventClose := rec.Close
	var after []models.Candle
	for _, c := range series {
		switch d := models.DateKey(c.Bucket); {
		case d.Equal(day):
			eventClose = c.Close
		case d.After(day):
			after = append(after, c)
		}
	}
	if len(after) < similarity.LongWindow {
		return false, nil
	}

	out, err := similarity.ForwardOutcome(eventClose, after)
	if err != nil {
		return false, err
	}
	out.Apply(rec)
	if err := j.archive.UpdateOutcome(ctx, *rec); err != nil {
		return false, fmt.Errorf("update outcome: %w", err)
	}
	return true, nil
}
