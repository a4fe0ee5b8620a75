package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
	"Corexia/internal/services/broker"
	applogger "Corexia/pkg/logger"
)

func newCloser(h *harness, feed service.PriceFeed) *PositionCloser {
	perf := NewPerformanceUpdater(h.state, nil, h.metrics, 10000)
	c := NewPositionCloser(broker.NewPaperBroker(h.state), h.state, perf, feed, applogger.Nop())
	c.now = func() time.Time { return testNow }
	return c
}

func openLong(t *testing.T, h *harness, id, symbol string, entry float64) {
	t.Helper()
	require.NoError(t, h.state.OpenPosition(context.Background(), models.Position{
		ID: id, AgentID: "operator", Symbol: symbol, Side: models.ActionLong,
		SizePct: 0.1, EntryPrice: entry, OpenedAt: testNow.Add(-48 * time.Hour),
	}))
}

func TestPositionCloser_ClosesAtGivenPrice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	openLong(t, h, "p1", "SPY", 500)

	pos, err := newCloser(h, nil).ClosePosition(ctx, "operator", "p1", 510)
	require.NoError(t, err)
	require.NotNil(t, pos.PnLPct)
	assert.InDelta(t, 2.0, *pos.PnLPct, 1e-9)
	assert.Equal(t, testNow, *pos.ClosedAt)
	assert.Contains(t, h.metrics.equity, "operator", "performance is refreshed after the close")

	st, err := h.state.RuntimeState(ctx, "operator", testNow, 5)
	require.NoError(t, err)
	assert.Empty(t, st.OpenPositions)
}

func TestPositionCloser_UsesFeedPrice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	openLong(t, h, "p1", "QQQ", 400)

	pos, err := newCloser(h, quotes{"QQQ": 392}).ClosePosition(ctx, "operator", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, 392.0, *pos.ExitPrice)
	assert.True(t, pos.Loss())
}

func TestPositionCloser_Rejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	openLong(t, h, "p1", "SPY", 500)

	_, err := newCloser(h, nil).ClosePosition(ctx, "operator", "p1", 0)
	assert.ErrorIs(t, err, ErrNoMarkPrice, "no feed and no price")

	_, err = newCloser(h, quotes{}).ClosePosition(ctx, "operator", "p1", 0)
	assert.ErrorIs(t, err, ErrNoMarkPrice, "feed has not seen the symbol")

	_, err = newCloser(h, nil).ClosePosition(ctx, "operator", "missing", 0)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
	_, err = newCloser(h, nil).ClosePosition(ctx, "operator", "missing", 500)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	_, err = newCloser(h, nil).ClosePosition(ctx, "operator", "p1", 505)
	require.NoError(t, err)
	_, err = newCloser(h, quotes{"SPY": 506}).ClosePosition(ctx, "operator", "p1", 0)
	assert.ErrorIs(t, err, models.ErrPositionClosed)
	_, err = newCloser(h, nil).ClosePosition(ctx, "operator", "p1", 506)
	assert.ErrorIs(t, err, models.ErrPositionClosed)
}
