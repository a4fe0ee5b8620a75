package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	"Corexia/internal/repository"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/util"
)

func TestSnapshotJob_Run(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.source.bundles["VIX"] = trendingBundle("VIX", 14.2, testNow)

	job := NewSnapshotJob(h.builder, h.archive, []string{"SPY", "QQQ", "VIX"}, "VIX", applogger.Nop())
	job.now = func() time.Time { return testNow }

	report, err := job.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, models.DateKey(testNow), report.Date)

	spy := report.Results[0]
	assert.True(t, spy.Stored)
	assert.Equal(t, models.StateTrending, spy.State)
	assert.Equal(t, models.FrictionLow, spy.Friction)
	assert.Empty(t, spy.Error)

	assert.False(t, report.Results[1].Stored)
	assert.Contains(t, report.Results[1].Error, "data unavailable", "one symbol failing does not stop the rest")
	assert.True(t, report.Results[2].Stored)
	assert.Equal(t, "High", report.NarrativeConfidence)

	fp, err := h.archive.LoadFingerprint(ctx, "SPY", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StateTrending, fp.MarketState)

	again, err := job.Run(ctx)
	require.NoError(t, err)
	assert.False(t, again.Results[0].Stored, "same date is not archived twice")
}

func TestSnapshotJob_AllSymbolsFail(t *testing.T) {
	h := newHarness(t)
	job := NewSnapshotJob(h.builder, h.archive, []string{"QQQ"}, "VIX", applogger.Nop())
	_, err := job.Run(context.Background())
	assert.Error(t, err)
}

func TestBackfillJob_Run(t *testing.T) {
	ctx := context.Background()
	archive := repository.NewMemoryArchive()
	candles := repository.NewMemoryCandleStore()

	event := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, candles.UpsertDailyCandles(ctx, []models.Candle{{Symbol: "SPY", Bucket: event, Open: 100, High: 100.5, Low: 99.5, Close: 100}}))
	day := event
	for i := 1; i <= 10; i++ {
		day = util.AddSessions(day, 1)
		c := 100 + float64(i)
		require.NoError(t, candles.UpsertDailyCandles(ctx, []models.Candle{{Symbol: "SPY", Bucket: day, Open: c, High: c + 0.5, Low: c - 0.5, Close: c}}))
	}
	lastCandle := day

	for _, d := range []time.Time{event, lastCandle, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)} {
		_, err := archive.Append(ctx, models.ArchiveRecord{Symbol: "SPY", Date: d, Close: 99})
		require.NoError(t, err)
	}

	job := NewBackfillJob(archive, candles, []string{"SPY"}, applogger.Nop())
	job.now = func() time.Time { return testNow }

	reports, err := job.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, BackfillReport{Symbol: "SPY", Pending: 2, Updated: 1, Skipped: 1}, reports[0])

	recs, err := archive.QuerySimilar(ctx, "SPY", "", "", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	require.True(t, rec.Backfilled())
	assert.Equal(t, 5.0, *rec.Forward5dReturn, "event close comes from the candle, not the record")
	assert.Equal(t, 10.0, *rec.Forward10dReturn)
	assert.Equal(t, models.ResolutionTrend, *rec.ResolutionType)

	again, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Pending)
}

func TestBackfillJob_PendingError(t *testing.T) {
	job := NewBackfillJob(brokenArchive{}, repository.NewMemoryCandleStore(), []string{"SPY"}, applogger.Nop())
	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, errBroken)
}

func TestCandlesUseCase_GetCandles(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryCandleStore()
	from := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	var bars []models.Candle
	for i := 0; i < 5; i++ {
		bars = append(bars, models.Candle{Symbol: "SPY", Bucket: from.AddDate(0, 0, i), Close: float64(100 + i)})
	}
	require.NoError(t, store.UpsertDailyCandles(ctx, bars))
	uc := NewCandlesUseCase(store)

	res, err := uc.GetCandles(ctx, GetCandlesParams{Symbol: "SPY", From: from, To: from.AddDate(0, 0, 10), Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 100.0, res.Candles[0].Close)

	_, err = uc.GetCandles(ctx, GetCandlesParams{Symbol: "SPY", From: from, To: from.AddDate(0, 0, -1)})
	assert.Error(t, err)
	_, err = uc.GetCandles(ctx, GetCandlesParams{From: from, To: from})
	assert.Error(t, err)
}
