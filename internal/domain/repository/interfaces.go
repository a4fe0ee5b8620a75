package repository

import (
	"context"
	"errors"
	"time"

	"Corexia/internal/domain/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// IndicatorSource fetches indicator outputs. A failed timeframe is reported
// inside the bundle (TimeframeReading.Error), not as an error; an error is
// returned only when nothing usable came back.
type IndicatorSource interface {
	FetchBundle(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.IndicatorBundle, error)
}

// ArchiveStore is the per-symbol, date-keyed fingerprint log.
type ArchiveStore interface {
	// Append stores a record; it returns false without error when (symbol, date) already exists.
	Append(ctx context.Context, rec models.ArchiveRecord) (bool, error)
	// LoadFingerprint returns the fingerprint stored for date, or ErrNotFound.
	LoadFingerprint(ctx context.Context, symbol string, date time.Time) (*models.RegimeFingerprint, error)
	// QuerySimilar returns up to limit backfilled records matching state and friction, oldest first.
	QuerySimilar(ctx context.Context, symbol string, state models.MarketState, friction models.Friction, limit int) ([]models.ArchiveRecord, error)
	// Pending returns records still missing forward returns and dated on or before cutoff.
	Pending(ctx context.Context, symbol string, cutoff time.Time) ([]models.ArchiveRecord, error)
	// UpdateOutcome writes the backfilled outcome for one record.
	UpdateOutcome(ctx context.Context, rec models.ArchiveRecord) error
}

// AgentStateStore holds positions and performance keyed by agent identity.
// Implementations never share mutable state between agent IDs.
type AgentStateStore interface {
	RuntimeState(ctx context.Context, agentID string, today time.Time, recentClosed int) (*models.RuntimeState, error)
	OpenPosition(ctx context.Context, pos models.Position) error
	ClosePosition(ctx context.Context, agentID, positionID string, exitPrice float64, closedAt time.Time) (*models.Position, error)
	Positions(ctx context.Context, agentID string) ([]models.Position, error)
	UpsertPerformance(ctx context.Context, perf models.DailyPerformance) error
}

// PerformanceHistory keeps the long-term record of daily performance rows for reporting.
type PerformanceHistory interface {
	Upsert(ctx context.Context, perf models.DailyPerformance) error
	History(ctx context.Context, agentID string, from time.Time) ([]models.DailyPerformance, error)
}

// DecisionLogStore persists the audit trail.
type DecisionLogStore interface {
	Insert(ctx context.Context, rec models.DecisionLog) error
	InsertBatch(ctx context.Context, recs []models.DecisionLog) error
	Recent(ctx context.Context, limit int) ([]models.DecisionLog, error)
}

// DecisionPublisher streams decision logs to a message bus.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, rec models.DecisionLog) error
	Close() error
}

// Metrics records pipeline outcomes.
type Metrics interface {
	RecordCycle(agentID string, branch models.Branch)
	RecordCycleDuration(agentID string, seconds float64)
	RecordPersistenceWarning(op string)
	RecordFetch(symbol string, ok bool, seconds float64)
	RecordSnapshot(symbol string, state models.MarketState, friction models.Friction, drift models.Drift)
	RecordEquity(agentID string, equity, drawdown float64)
}
