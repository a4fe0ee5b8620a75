package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/queue"
)

type runnerFunc func(ctx context.Context, symbol string) ([]models.CycleResult, error)

func (f runnerFunc) RunAll(ctx context.Context, symbol string) ([]models.CycleResult, error) {
	return f(ctx, symbol)
}

func TestAgentRunJob(t *testing.T) {
	ctx := context.Background()
	var seen []string
	job := NewAgentRunJob(runnerFunc(func(_ context.Context, symbol string) ([]models.CycleResult, error) {
		seen = append(seen, symbol)
		switch symbol {
		case "QQQ":
			return nil, ErrRunInProgress
		case "IWM":
			return []models.CycleResult{{Log: models.DecisionLog{Branch: models.BranchFailed}}}, errors.New("source down")
		case "DIA":
			return []models.CycleResult{
				{Log: models.DecisionLog{AgentID: "steward", Branch: models.BranchExecuted}},
				{Log: models.DecisionLog{AgentID: "hunter", Branch: models.BranchFailed}},
			}, context.Canceled
		}
		return []models.CycleResult{{Log: models.DecisionLog{Branch: models.BranchExecuted}}}, nil
	}), "SPY", applogger.Nop())

	assert.Equal(t, JobAgentRun, job.Type())
	require.NoError(t, job.Handle(ctx, nil))
	require.NoError(t, job.Handle(ctx, json.RawMessage(`{"symbol":"QQQ"}`)), "in-progress runs are skipped")

	err := job.Handle(ctx, json.RawMessage(`{"symbol":"IWM"}`))
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err), "nothing decided yet, so the run may be retried")

	err = job.Handle(ctx, json.RawMessage(`{"symbol":"DIA"}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err), "a partly decided run is not retried")
	assert.ErrorIs(t, err, context.Canceled)

	err = job.Handle(ctx, json.RawMessage(`not json`))
	assert.True(t, queue.IsPermanent(err))
	assert.Equal(t, []string{"SPY", "QQQ", "IWM", "DIA"}, seen)
}

func TestSnapshotQueueJob(t *testing.T) {
	h := newHarness(t)
	snap := NewSnapshotJob(h.builder, h.archive, []string{"SPY"}, "^VIX", applogger.Nop())
	snap.now = func() time.Time { return testNow }

	job := NewSnapshotQueueJob(snap, applogger.Nop())
	require.NoError(t, job.Handle(context.Background(), nil))

	fp, err := h.archive.LoadFingerprint(context.Background(), "SPY", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StateTrending, fp.MarketState)
}
