package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	pkgkafka "Corexia/pkg/kafka"
)

// DecisionLogHandler consumes published decision logs and writes them to storage.
type DecisionLogHandler struct {
	topic   string
	store   domrepo.DecisionLogStore
	metrics domrepo.Metrics
}

func NewDecisionLogHandler(topic string, store domrepo.DecisionLogStore, metrics domrepo.Metrics) *DecisionLogHandler {
	return &DecisionLogHandler{topic: topic, store: store, metrics: metrics}
}

func (h *DecisionLogHandler) Topic() string { return h.topic }

func (h *DecisionLogHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.DecisionLog
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordPersistenceWarning("consume_decision_unmarshal")
		return fmt.Errorf("decode decision log: %w", err)
	}
	if rec.ID == "" || rec.AgentID == "" {
		h.metrics.RecordPersistenceWarning("consume_decision_invalid")
		return fmt.Errorf("decision log missing id or agent")
	}
	if err := h.store.Insert(ctx, rec); err != nil {
		h.metrics.RecordPersistenceWarning("consume_decision_store")
		return fmt.Errorf("store decision log %s: %w", rec.ID, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*DecisionLogHandler)(nil)
