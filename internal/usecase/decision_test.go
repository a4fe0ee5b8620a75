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
	"Corexia/internal/repository"
	applogger "Corexia/pkg/logger"
)

type fakePublisher struct {
	sent   []models.DecisionLog
	err    error
	closed bool
}

func (p *fakePublisher) PublishDecision(_ context.Context, rec models.DecisionLog) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, rec)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestDecisionRecorder_Routes(t *testing.T) {
	ctx := context.Background()
	rec := models.DecisionLog{ID: "d-1", AgentID: "steward", Branch: models.BranchAbstained}

	pub := &fakePublisher{}
	store := repository.NewMemoryDecisionLog()
	m := newFakeMetrics()

	require.NoError(t, NewDecisionRecorder(pub, store, m, BackendKafka, applogger.Nop()).Record(ctx, rec))
	assert.Len(t, pub.sent, 1)
	stored, _ := store.Recent(ctx, 10)
	assert.Empty(t, stored)

	require.NoError(t, NewDecisionRecorder(pub, store, m, BackendClickHouse, applogger.Nop()).Record(ctx, rec))
	stored, _ = store.Recent(ctx, 10)
	assert.Len(t, stored, 1)

	err := NewDecisionRecorder(pub, store, m, "s3", applogger.Nop()).Record(ctx, rec)
	assert.ErrorContains(t, err, "unknown backend")

	pub.err = errors.New("broker down")
	r := NewDecisionRecorder(pub, store, m, BackendKafka, applogger.Nop())
	assert.Error(t, r.Record(ctx, rec))
	assert.Equal(t, []string{"record_decision", "record_decision"}, m.warnings)

	r.Close()
	assert.True(t, pub.closed)
}

func TestDecisionLogHandler_Handle(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryDecisionLog()
	h := NewDecisionLogHandler("corexia.decisions", store, newFakeMetrics())
	assert.Equal(t, "corexia.decisions", h.Topic())

	rec := models.DecisionLog{
		ID:        "d-9",
		RunID:     "r-1",
		AgentID:   "hunter",
		Symbol:    "SPY",
		Timestamp: time.Date(2026, 5, 5, 20, 15, 0, 0, time.UTC),
		Branch:    models.BranchRiskBlocked,
		Intent:    "Bearish stress fade",
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, h.Handle(ctx, b))

	got, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])

	assert.Error(t, h.Handle(ctx, []byte("{not json")))
	assert.Error(t, h.Handle(ctx, []byte(`{"id":""}`)))
}
