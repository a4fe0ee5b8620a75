package repository

import (
	"context"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	pkgkafka "Corexia/pkg/kafka"
)

// KafkaDecisionPublisher streams decision logs keyed by agent so one agent's
// records stay ordered on a single partition.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.DecisionPublisher = (*KafkaDecisionPublisher)(nil)

func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) PublishDecision(ctx context.Context, rec models.DecisionLog) error {
	return p.producer.Publish(ctx, p.topic, rec.AgentID, rec)
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
