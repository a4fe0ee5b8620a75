package usecase

import (
	"context"
	"fmt"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	applogger "Corexia/pkg/logger"
)

// Backend names accepted by DecisionRecorder.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// DecisionSink persists one decision log.
type DecisionSink interface {
	Record(ctx context.Context, rec models.DecisionLog) error
}

// DecisionRecorder routes decision logs to the configured backend. With the
// kafka backend the log is published and a consumer writes it to storage.
type DecisionRecorder struct {
	pub     domrepo.DecisionPublisher
	store   domrepo.DecisionLogStore
	metrics domrepo.Metrics
	backend string
	log     *applogger.Logger
}

var _ DecisionSink = (*DecisionRecorder)(nil)

func NewDecisionRecorder(
	pub domrepo.DecisionPublisher,
	store domrepo.DecisionLogStore,
	metrics domrepo.Metrics,
	backend string,
	l *applogger.Logger,
) *DecisionRecorder {
	return &DecisionRecorder{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		log:     l,
	}
}

// Record writes rec. Errors are returned so the caller can decide whether
// they are fatal; the agent cycle treats them as warnings.
func (r *DecisionRecorder) Record(ctx context.Context, rec models.DecisionLog) error {
	var err error
	switch r.backend {
	case BackendKafka:
		if r.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
			break
		}
		err = r.pub.PublishDecision(ctx, rec)
	case BackendClickHouse, BackendMemory:
		if r.store == nil {
			err = fmt.Errorf("%s backend without store", r.backend)
			break
		}
		err = r.store.Insert(ctx, rec)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}
	if err != nil {
		r.metrics.RecordPersistenceWarning("record_decision")
		return fmt.Errorf("record decision %s/%s: %w", rec.AgentID, rec.Branch, err)
	}
	return nil
}

// Close releases the publisher, if any.
func (r *DecisionRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
}
