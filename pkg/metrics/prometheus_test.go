package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"Corexia/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordCycle("steward", models.BranchExecuted)
	r.RecordCycle("steward", models.BranchExecuted)
	r.RecordCycle("hunter", models.BranchRiskBlocked)
	r.RecordFetch("SPY", false, 0.4)
	r.RecordPersistenceWarning("decision_log")
	r.RecordEquity("steward", 10250, 0.02)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cycles.WithLabelValues("steward", "executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("hunter", "risk_blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetches.WithLabelValues("SPY", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.warnings.WithLabelValues("decision_log")))
	assert.Equal(t, 10250.0, testutil.ToFloat64(r.equity.WithLabelValues("steward")))
	assert.Equal(t, 0.02, testutil.ToFloat64(r.drawdown.WithLabelValues("steward")))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
