package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	"Corexia/internal/repository"
)

func TestPaperBroker_ExecuteAndClose(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryAgentState()
	b := NewPaperBroker(store, WithIDGenerator(func() string { return "pos-1" }))
	at := time.Date(2026, 5, 4, 20, 15, 0, 0, time.UTC)

	pos, err := b.Execute(ctx, "hunter", models.Decision{
		Action: models.ActionShort, Symbol: "SPY", SizePct: 0.2, Rationale: "fade",
	}, 500, at)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", pos.ID)
	assert.Equal(t, models.ActionShort, pos.Side)
	assert.True(t, pos.Open())

	open, err := store.Positions(ctx, "hunter")
	require.NoError(t, err)
	require.Len(t, open, 1)

	closed, err := b.Close(ctx, "hunter", "pos-1", 490, at.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, closed.PnLPct)
	assert.InDelta(t, 2.0, *closed.PnLPct, 1e-9, "short gains when price falls")

	st, err := store.RuntimeState(ctx, "hunter", at, 5)
	require.NoError(t, err)
	assert.Empty(t, st.OpenPositions)
	require.Len(t, st.RecentClosed, 1)
	assert.False(t, st.RecentClosed[0].Loss())
}

func TestPaperBroker_Rejects(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(repository.NewMemoryAgentState())
	at := time.Now()

	_, err := b.Execute(ctx, "steward", models.Decision{Action: models.ActionFlat, Symbol: "SPY"}, 100, at)
	assert.Error(t, err)

	_, err = b.Execute(ctx, "steward", models.Decision{Action: models.ActionLong, Symbol: "SPY"}, 0, at)
	assert.Error(t, err)

	_, err = b.Close(ctx, "steward", "missing", 100, at)
	assert.Error(t, err)
}

func TestPaperBroker_DefaultIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(repository.NewMemoryAgentState())
	d := models.Decision{Action: models.ActionLong, Symbol: "QQQ", SizePct: 0.1}

	a, err := b.Execute(ctx, "operator", d, 400, time.Now())
	require.NoError(t, err)
	c, err := b.Execute(ctx, "operator", d, 401, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}
